package middleware

import (
	"context"
	"net/http"

	"radportal/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type RoleResolver interface {
	GetUserRole(ctx context.Context, userID uuid.UUID) entity.UserRole
}

// RequireAdmin must run after RequireAuth. The role comes from the resolver,
// which re-validates stored admin roles, never from the token.
func RequireAdmin(roles RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserIDFromContext(c)
			if !ok || roles == nil {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			role := roles.GetUserRole(c.Request().Context(), userID)
			if role != entity.UserRoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			SetRole(c, role)
			return next(c)
		}
	}
}
