package middleware

import (
	"radportal/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextUserIDKey    = "auth_user_id"
	contextEmailKey     = "auth_email"
	contextSessionKey   = "auth_session_id"
	contextTokenHashKey = "auth_token_hash"
	contextRoleKey      = "auth_role"
)

func SetAuthContext(c echo.Context, userID uuid.UUID, email string, sessionID uuid.UUID, tokenHash string) {
	c.Set(contextUserIDKey, userID)
	c.Set(contextEmailKey, email)
	c.Set(contextSessionKey, sessionID)
	c.Set(contextTokenHashKey, tokenHash)
}

func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextUserIDKey)
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func EmailFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextEmailKey)
	email, ok := value.(string)
	return email, ok
}

func SessionIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextSessionKey)
	sessionID, ok := value.(uuid.UUID)
	return sessionID, ok
}

func TokenHashFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextTokenHashKey)
	hash, ok := value.(string)
	return hash, ok && hash != ""
}

func SetRole(c echo.Context, role entity.UserRole) {
	c.Set(contextRoleKey, role)
}

func RoleFromContext(c echo.Context) (entity.UserRole, bool) {
	value := c.Get(contextRoleKey)
	role, ok := value.(entity.UserRole)
	return role, ok
}
