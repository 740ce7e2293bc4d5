package dto

import (
	"encoding/json"
	"time"

	"radportal/internal/device"
	"radportal/internal/entity"
)

type EligibilityRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type EligibilityResponse struct {
	Allowed                bool   `json:"allowed"`
	Reason                 string `json:"reason,omitempty"`
	Method                 string `json:"method,omitempty"`
	RequiresInvitationCode bool   `json:"requires_invitation_code"`
}

type MagicLinkRequest struct {
	Email          string             `json:"email" validate:"required,email"`
	InvitationCode string             `json:"invitation_code" validate:"omitempty,max=64"`
	Device         *device.Attributes `json:"device" validate:"omitempty"`
}

// MagicLinkResponse carries the poll token for the requesting device. The
// verify token is never part of a response.
type MagicLinkResponse struct {
	PollToken string    `json:"poll_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MagicLinkStatusResponse struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	Email           string    `json:"email"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type MagicLinkTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type MagicLinkVerifyResponse struct {
	Success            bool `json:"success"`
	NewlyAuthenticated bool `json:"newly_authenticated"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	SessionID   string       `json:"session_id"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserResponseFromEntity renders user with role, which must already be the
// server-validated role rather than the stored column.
func UserResponseFromEntity(user *entity.User, role entity.UserRole) UserResponse {
	return UserResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		Role:        string(role),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

type SessionResponse struct {
	ID           string    `json:"id"`
	DeviceName   string    `json:"device_name"`
	DeviceType   string    `json:"device_type"`
	BrowserName  string    `json:"browser_name"`
	OSName       string    `json:"os_name"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	Location     string    `json:"location"`
	LocationISP  *string   `json:"location_isp,omitempty"`
	Current      bool      `json:"current"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SecurityEventResponse struct {
	Action    string          `json:"action"`
	IPAddress *string         `json:"ip_address,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type RevokeSessionsResponse struct {
	Success bool `json:"success"`
}

type ReviewAccessRequestRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

type InvitationCodeRequest struct {
	Email            *string `json:"email" validate:"omitempty,email"`
	MaxUses          int     `json:"max_uses" validate:"omitempty,min=1,max=1000"`
	ExpiresInMinutes int     `json:"expires_in_minutes" validate:"omitempty,min=1"`
}

type InvitationCodeResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Email     *string    `json:"email,omitempty"`
	MaxUses   int        `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func InvitationCodeResponseFromEntity(code *entity.InvitationCode) InvitationCodeResponse {
	return InvitationCodeResponse{
		ID:        code.ID.String(),
		Code:      code.Code,
		Email:     code.Email,
		MaxUses:   code.MaxUses,
		ExpiresAt: code.ExpiresAt,
	}
}
