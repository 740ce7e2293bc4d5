package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"radportal/internal/entity"
	"radportal/internal/repository"
	"radportal/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const defaultAccessRequestPageSize = 50

type AccessRequestService struct {
	requests     repository.AccessRequestRepository
	securityLogs repository.SecurityLogRepository
	geolocator   Geolocator
	clock        Clock
	logger       logrus.FieldLogger
}

func NewAccessRequestService(
	requests repository.AccessRequestRepository,
	securityLogs repository.SecurityLogRepository,
	geolocator Geolocator,
	clock Clock,
	logger logrus.FieldLogger,
) *AccessRequestService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AccessRequestService{
		requests:     requests,
		securityLogs: securityLogs,
		geolocator:   geolocator,
		clock:        clock,
		logger:       logger.WithField("component", "AccessRequests"),
	}
}

func (s *AccessRequestService) Submit(ctx context.Context, input AccessRequestInput) (uuid.UUID, error) {
	email := utils.NormalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)
	if email == "" || fullName == "" {
		return uuid.Nil, ErrInvalidInput
	}
	if _, _, ok := utils.SplitEmail(email); !ok {
		return uuid.Nil, ErrInvalidInput
	}

	pending, err := s.requests.FindByEmailAndStatus(ctx, email, entity.AccessRequestPending)
	if err != nil {
		return uuid.Nil, err
	}
	if pending != nil {
		return uuid.Nil, ErrAccessRequestPending
	}
	approved, err := s.requests.FindByEmailAndStatus(ctx, email, entity.AccessRequestApproved)
	if err != nil {
		return uuid.Nil, err
	}
	if approved != nil {
		return uuid.Nil, ErrAccessAlreadyApproved
	}

	request := &entity.AccessRequest{
		Email:      email,
		FullName:   fullName,
		Department: strings.TrimSpace(input.Department),
		Reason:     strings.TrimSpace(input.Reason),
		Status:     entity.AccessRequestPending,
		IPAddress:  input.IPAddress,
		UserAgent:  optionalString(input.UserAgent),
	}
	s.enrich(ctx, request)

	if err := s.requests.Create(ctx, request); err != nil {
		s.logger.WithError(err).WithField("email", email).Error("store access request failed")
		return uuid.Nil, err
	}

	_ = logSecurity(ctx, s.securityLogs, nil, email, input.IPAddress, entity.AccessRequestSubmitted, map[string]any{
		"request_id": request.ID.String(),
	})
	return request.ID, nil
}

func (s *AccessRequestService) enrich(ctx context.Context, request *entity.AccessRequest) {
	if request.IPAddress == nil || s.geolocator == nil {
		return
	}
	data := s.geolocator.Lookup(ctx, *request.IPAddress)
	if data == nil || data.Status != "success" {
		return
	}
	request.LocationCity = optionalString(data.City)
	request.LocationRegion = optionalString(data.RegionName)
	request.LocationCountry = optionalString(data.Country)
	request.LocationISP = optionalString(data.ISP)

	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.WithError(err).Warn("encode geolocation snapshot failed")
		return
	}
	request.GeoData = datatypes.JSON(raw)
}

func (s *AccessRequestService) ListPending(ctx context.Context, limit, offset int) ([]entity.AccessRequest, error) {
	if limit <= 0 {
		limit = defaultAccessRequestPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.requests.ListByStatus(ctx, entity.AccessRequestPending, limit, offset)
}

// Review approves or denies a pending request. Already reviewed requests are
// left untouched.
func (s *AccessRequestService) Review(ctx context.Context, id uuid.UUID, approve bool, reviewerID uuid.UUID) (*entity.AccessRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrAccessRequestNotFound
	}

	status := entity.AccessRequestDenied
	if approve {
		status = entity.AccessRequestApproved
	}
	now := s.now()
	rows, err := s.requests.UpdateStatus(ctx, id, status, reviewerID, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrAccessRequestReviewed
	}

	request.Status = status
	request.ReviewedBy = &reviewerID
	request.ReviewedAt = &now

	_ = logSecurity(ctx, s.securityLogs, &reviewerID, request.Email, nil, entity.AccessRequestReviewed, map[string]any{
		"request_id": id.String(),
		"status":     string(status),
	})
	return request, nil
}

func (s *AccessRequestService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
