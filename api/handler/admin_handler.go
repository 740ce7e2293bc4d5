package handler

import (
	"errors"
	"net/http"
	"time"

	"radportal/api/middleware"
	"radportal/internal/dto"
	"radportal/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	AccessRequests *service.AccessRequestService
	Validation     *service.AuthValidation
	Validate       *validator.Validate
}

func NewAdminHandler(requests *service.AccessRequestService, validation *service.AuthValidation, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{
		AccessRequests: requests,
		Validation:     validation,
		Validate:       validate,
	}
}

func (h *AdminHandler) ListAccessRequests(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	requests, err := h.AccessRequests.ListPending(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, requests)
}

func (h *AdminHandler) ReviewAccessRequest(c echo.Context) error {
	reviewerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid access request id"))
	}
	var req dto.ReviewAccessRequestRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}

	request, err := h.AccessRequests.Review(c.Request().Context(), requestID, *req.Approve, reviewerID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}

func (h *AdminHandler) IssueInvitationCode(c echo.Context) error {
	adminID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.InvitationCodeRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}

	code, err := h.Validation.IssueInvitationCode(c.Request().Context(), service.InvitationInput{
		Email:     req.Email,
		MaxUses:   req.MaxUses,
		ExpiresIn: time.Duration(req.ExpiresInMinutes) * time.Minute,
		CreatedBy: adminID,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.InvitationCodeResponseFromEntity(code))
}

func (h *AdminHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}
