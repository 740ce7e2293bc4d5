package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"radportal/api/middleware"
	"radportal/internal/dto"
	"radportal/internal/entity"
	"radportal/internal/geo"
	"radportal/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SessionHandler struct {
	Sessions *service.SessionManager
}

func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

func (h *SessionHandler) ListSessions(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	currentHash, _ := middleware.TokenHashFromContext(c)

	sessions := h.Sessions.GetUserSessions(c.Request().Context(), userID)
	response := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, mapSession(session, currentHash))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *SessionHandler) RevokeSession(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid session id"))
	}
	if !h.Sessions.RevokeSession(c.Request().Context(), sessionID, userID) {
		return writeServiceError(c, service.ErrSessionNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) RevokeOthers(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	currentHash, _ := middleware.TokenHashFromContext(c)
	success := h.Sessions.RevokeAllSessions(c.Request().Context(), userID, currentHash)
	return c.JSON(http.StatusOK, dto.RevokeSessionsResponse{Success: success})
}

func (h *SessionHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	h.Sessions.Logout(c.Request().Context(), sessionID, userID, stringPtr(c.RealIP()))
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) Activity(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	limit, _ := parseLimitOffset(c)
	logs := h.Sessions.RecentActivity(c.Request().Context(), userID, limit)
	response := make([]dto.SecurityEventResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, dto.SecurityEventResponse{
			Action:    string(log.Action),
			IPAddress: log.IPAddress,
			Metadata:  json.RawMessage(log.Metadata),
			CreatedAt: log.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, response)
}

func mapSession(session entity.UserSession, currentHash string) dto.SessionResponse {
	return dto.SessionResponse{
		ID:           session.ID.String(),
		DeviceName:   session.DeviceName,
		DeviceType:   session.DeviceType,
		BrowserName:  session.BrowserName,
		OSName:       session.OSName,
		IPAddress:    session.IPAddress,
		Location:     geo.FormatLocation(sessionLocation(session)),
		LocationISP:  session.LocationISP,
		Current:      currentHash != "" && session.TokenHash == currentHash,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		ExpiresAt:    session.ExpiresAt,
	}
}

func sessionLocation(session entity.UserSession) *geo.Data {
	if session.LocationCity == nil && session.LocationRegion == nil && session.LocationCountry == nil {
		return nil
	}
	return &geo.Data{
		Status:     "success",
		City:       deref(session.LocationCity),
		RegionName: deref(session.LocationRegion),
		Country:    deref(session.LocationCountry),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
