package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"radportal/internal/entity"
	"radportal/internal/repository"
	"radportal/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminStatusService answers admin checks from the admin_emails
// configuration row.
type AdminStatusService struct {
	configs repository.AdminConfigRepository
	users   repository.UserRepository
	logger  logrus.FieldLogger
}

func NewAdminStatusService(
	configs repository.AdminConfigRepository,
	users repository.UserRepository,
	logger logrus.FieldLogger,
) *AdminStatusService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminStatusService{
		configs: configs,
		users:   users,
		logger:  logger.WithField("component", "AdminStatus"),
	}
}

func (s *AdminStatusService) IsAdmin(ctx context.Context, email string, userID uuid.UUID) (bool, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return false, ErrInvalidInput
	}

	config, err := s.configs.FindByKey(ctx, entity.AdminEmailsConfigKey)
	if err != nil {
		s.logger.WithError(err).Error("load admin configuration failed")
		return false, ErrAdminConfigUnavailable
	}
	if config == nil {
		return false, nil
	}

	var admins []string
	if err := json.Unmarshal(config.ConfigValue, &admins); err != nil {
		s.logger.WithError(err).Error("decode admin configuration failed")
		return false, ErrAdminConfigUnavailable
	}

	isAdmin := false
	for _, candidate := range admins {
		if utils.NormalizeEmail(candidate) == email {
			isAdmin = true
			break
		}
	}
	if isAdmin && userID != uuid.Nil {
		s.promote(ctx, email, userID)
	}
	return isAdmin, nil
}

// promote upgrades the stored role when the profile really belongs to email.
// Failures are logged only.
func (s *AdminStatusService) promote(ctx context.Context, email string, userID uuid.UUID) {
	log := s.logger.WithField("user_id", userID)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("load profile for role upgrade failed")
		return
	}
	if user == nil || user.Email != email || user.Role == entity.UserRoleAdmin {
		return
	}
	if err := s.users.UpdateRole(ctx, userID, entity.UserRoleAdmin); err != nil {
		log.WithError(err).Warn("role upgrade failed")
	}
}

// HTTPAdminChecker delegates admin checks to a remote check-admin-status
// endpoint.
type HTTPAdminChecker struct {
	URL        string
	HTTPClient *http.Client
}

var defaultAdminStatusClient = &http.Client{Timeout: 10 * time.Second}

func NewHTTPAdminChecker(url string) *HTTPAdminChecker {
	return &HTTPAdminChecker{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPAdminChecker) IsAdmin(ctx context.Context, email string, userID uuid.UUID) (bool, error) {
	if strings.TrimSpace(c.URL) == "" {
		return false, fmt.Errorf("admin status endpoint not configured")
	}
	client := c.HTTPClient
	if client == nil {
		client = defaultAdminStatusClient
	}

	payload, err := json.Marshal(map[string]string{
		"email":  email,
		"userId": userID.String(),
	})
	if err != nil {
		return false, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return false, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return false, fmt.Errorf("admin status check failed with status %d", response.StatusCode)
	}

	var body struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.IsAdmin, nil
}
