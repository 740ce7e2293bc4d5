package middleware

import (
	"context"
	"net/http"
	"strings"

	"radportal/internal/entity"
	"radportal/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) *entity.UserSession
	UpdateSessionActivity(ctx context.Context, token string)
}

// AuthMiddleware accepts a bearer token only when its signature is valid and
// the persisted session behind it is still active and unexpired.
type AuthMiddleware struct {
	JWT      *utils.JWTManager
	Sessions SessionResolver
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.JWT == nil || m.Sessions == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		claims, err := m.JWT.ParseSessionToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		ctx := c.Request().Context()
		session := m.Sessions.ResolveSession(ctx, token)
		if session == nil || session.UserID != userID {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired or revoked")
		}
		m.Sessions.UpdateSessionActivity(ctx, token)

		SetAuthContext(c, userID, claims.Email, session.ID, session.TokenHash)
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
