package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"radportal/api/middleware"
	"radportal/internal/device"
	"radportal/internal/dto"
	"radportal/internal/entity"
	"radportal/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MagicLinkFlow is the handshake surface of service.AuthSessionManager.
type MagicLinkFlow interface {
	RequestMagicLink(ctx context.Context, input service.MagicLinkInput) (*service.MagicLinkResult, error)
	CheckSessionStatus(ctx context.Context, pollToken string) (*service.SessionStatus, error)
	AuthenticateSession(ctx context.Context, verifyToken string, ipAddress *string) (*service.AuthenticateResult, error)
	CompleteLogin(ctx context.Context, pollToken string, client service.ClientInfo) (*service.LoginResult, error)
}

type UserDirectory interface {
	IsEmailAllowedToAuthenticate(ctx context.Context, email string) service.Eligibility
	CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	GetUserRole(ctx context.Context, userID uuid.UUID) entity.UserRole
}

type AuthHandler struct {
	Sessions   MagicLinkFlow
	Validation UserDirectory
	Validate   *validator.Validate
}

func NewAuthHandler(sessions MagicLinkFlow, validation UserDirectory, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Sessions:   sessions,
		Validation: validation,
		Validate:   validate,
	}
}

func (h *AuthHandler) Eligibility(c echo.Context) error {
	var req dto.EligibilityRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	eligibility := h.Validation.IsEmailAllowedToAuthenticate(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, mapEligibility(eligibility))
}

func (h *AuthHandler) RequestMagicLink(c echo.Context) error {
	var req dto.MagicLinkRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}

	var attrs device.Attributes
	if req.Device != nil {
		attrs = *req.Device
	}
	if attrs.UserAgent == "" {
		attrs.UserAgent = c.Request().UserAgent()
	}
	if attrs.Language == "" {
		attrs.Language = primaryLanguage(c.Request().Header.Get("Accept-Language"))
	}

	result, err := h.Sessions.RequestMagicLink(c.Request().Context(), service.MagicLinkInput{
		Email:          req.Email,
		InvitationCode: req.InvitationCode,
		Attributes:     attrs,
		IPAddress:      stringPtr(c.RealIP()),
	})
	if err != nil {
		if result != nil && errors.Is(err, service.ErrEmailNotAllowed) {
			return c.JSON(http.StatusForbidden, mapEligibility(result.Eligibility))
		}
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.MagicLinkResponse{
		PollToken: result.PollToken,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *AuthHandler) MagicLinkStatus(c echo.Context) error {
	status, err := h.Sessions.CheckSessionStatus(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MagicLinkStatusResponse{
		IsAuthenticated: status.IsAuthenticated,
		Email:           status.Email,
		ExpiresAt:       status.ExpiresAt,
	})
}

func (h *AuthHandler) VerifyMagicLink(c echo.Context) error {
	var req dto.MagicLinkTokenRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Sessions.AuthenticateSession(c.Request().Context(), req.Token, stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MagicLinkVerifyResponse{
		Success:            true,
		NewlyAuthenticated: result.NewlyAuthenticated,
	})
}

func (h *AuthHandler) CompleteMagicLink(c echo.Context) error {
	var req dto.MagicLinkTokenRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Sessions.CompleteLogin(c.Request().Context(), req.Token, service.ClientInfo{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		SessionID:   result.SessionID.String(),
		User:        dto.UserResponseFromEntity(&result.User, result.Role),
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	ctx := c.Request().Context()
	user, err := h.Validation.CurrentUser(ctx, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	role := h.Validation.GetUserRole(ctx, userID)
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user, role))
}

func (h *AuthHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func mapEligibility(e service.Eligibility) dto.EligibilityResponse {
	return dto.EligibilityResponse{
		Allowed:                e.Allowed,
		Reason:                 e.Reason,
		Method:                 e.Method,
		RequiresInvitationCode: e.RequiresInvitationCode,
	}
}

// primaryLanguage returns the first tag of an Accept-Language header.
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"message": err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotAllowed), errors.Is(err, service.ErrInvalidInvitationCode):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAccessRequestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSessionExpired):
		status = http.StatusGone
	case errors.Is(err, service.ErrSessionNotAuthenticated),
		errors.Is(err, service.ErrAccessRequestPending),
		errors.Is(err, service.ErrAccessAlreadyApproved),
		errors.Is(err, service.ErrAccessRequestReviewed):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvitationRequired):
		status = http.StatusPreconditionRequired
	case errors.Is(err, service.ErrMagicLinkDelivery):
		status = http.StatusBadGateway
	case errors.Is(err, service.ErrAdminConfigUnavailable):
		status = http.StatusInternalServerError
	default:
		// Unmapped errors come from storage; keep their detail out of the response.
		return writeError(c, status, errors.New("internal server error"))
	}
	return writeError(c, status, err)
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
