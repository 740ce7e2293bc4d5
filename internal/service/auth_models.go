package service

import (
	"time"

	"radportal/internal/device"
	"radportal/internal/entity"

	"github.com/google/uuid"
)

// PendingTokens are the two secrets minted per handshake. PollToken stays
// with the requesting device; VerifyToken only ever travels in the email.
type PendingTokens struct {
	PollToken   string
	VerifyToken string
}

type SessionStatus struct {
	IsAuthenticated bool
	Email           string
	ExpiresAt       time.Time
}

// AuthenticateResult tells the link-clicking device whether this call did
// the transition or found it already done.
type AuthenticateResult struct {
	NewlyAuthenticated bool
}

type MagicLinkInput struct {
	Email          string
	InvitationCode string
	Attributes     device.Attributes
	IPAddress      *string
}

type MagicLinkResult struct {
	PollToken   string
	ExpiresAt   time.Time
	Eligibility Eligibility
}

type ClientInfo struct {
	IPAddress *string
	UserAgent string
}

type SessionInput struct {
	UserID    uuid.UUID
	Token     string
	IPAddress *string
	UserAgent string
	// ExpiresIn overrides the configured session duration when positive.
	ExpiresIn time.Duration
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
	SessionID   uuid.UUID
	User        entity.User
	Role        entity.UserRole
}

const (
	MethodCWID           = "cwid"
	MethodApprovedDomain = "approved_domain"
	MethodAccessRequest  = "access_request"
	MethodInvitationCode = "invitation_code"
)

type Eligibility struct {
	Allowed                bool
	Reason                 string
	Method                 string
	RequiresInvitationCode bool
}

type InvitationInput struct {
	Email     *string
	MaxUses   int
	ExpiresIn time.Duration
	CreatedBy uuid.UUID
}

type AccessRequestInput struct {
	Email      string
	FullName   string
	Department string
	Reason     string
	IPAddress  *string
	UserAgent  string
}
