package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"radportal/internal/dto"
	"radportal/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AccessRequestSubmitter interface {
	Submit(ctx context.Context, input service.AccessRequestInput) (uuid.UUID, error)
}

// PortalHandler serves the two endpoints the portal's browser code calls
// directly. Both accept POST only and answer other methods with 405.
type PortalHandler struct {
	Admin          service.AdminChecker
	AccessRequests AccessRequestSubmitter
	Validate       *validator.Validate
	Logger         logrus.FieldLogger
	now            func() time.Time
}

func NewPortalHandler(admin service.AdminChecker, requests AccessRequestSubmitter, validate *validator.Validate, logger logrus.FieldLogger) *PortalHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PortalHandler{
		Admin:          admin,
		AccessRequests: requests,
		Validate:       validate,
		Logger:         logger.WithField("component", "PortalHandler"),
		now:            time.Now,
	}
}

func (h *PortalHandler) CheckAdminStatus(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return writeError(c, http.StatusMethodNotAllowed, errors.New("Method not allowed"))
	}
	var req dto.AdminStatusRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("Invalid request body"))
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("Missing or invalid email or userId"))
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("Missing or invalid email or userId"))
	}
	if h.Admin == nil {
		return writeServiceError(c, service.ErrAdminConfigUnavailable)
	}

	isAdmin, err := h.Admin.IsAdmin(c.Request().Context(), req.Email, userID)
	if err != nil {
		h.Logger.WithError(err).WithField("user_id", userID).Error("admin status check failed")
		return writeServiceError(c, service.ErrAdminConfigUnavailable)
	}
	return c.JSON(http.StatusOK, dto.AdminStatusResponse{
		IsAdmin:   isAdmin,
		Timestamp: h.now().UTC(),
	})
}

func (h *PortalHandler) SubmitAccessRequest(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return writeError(c, http.StatusMethodNotAllowed, errors.New("Method not allowed"))
	}
	var req dto.AccessRequestSubmission
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("Invalid request body"))
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("A valid email and full name are required"))
	}
	if h.AccessRequests == nil {
		return writeError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}

	requestID, err := h.AccessRequests.Submit(c.Request().Context(), service.AccessRequestInput{
		Email:      req.Email,
		FullName:   req.FullName,
		Department: req.Department,
		Reason:     req.Reason,
		IPAddress:  stringPtr(c.RealIP()),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		if !isMappedServiceError(err) {
			h.Logger.WithError(err).Error("submit access request failed")
		}
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AccessRequestSubmitted{
		Success:   true,
		RequestID: requestID.String(),
	})
}

func (h *PortalHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func isMappedServiceError(err error) bool {
	return errors.Is(err, service.ErrInvalidInput) ||
		errors.Is(err, service.ErrAccessRequestPending) ||
		errors.Is(err, service.ErrAccessAlreadyApproved)
}
