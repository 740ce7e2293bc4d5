package service

import (
	"context"
	"time"

	"radportal/internal/entity"
	"radportal/internal/geo"
	"radportal/internal/utils"

	"github.com/google/uuid"
)

const (
	defaultMagicLinkTTL        = 15 * time.Minute
	defaultSessionTTL          = 7 * 24 * time.Hour
	defaultInstitutionalDomain = "med.cornell.edu"
)

type AuthConfig struct {
	MagicLinkTTL        time.Duration
	SessionTTL          time.Duration
	InstitutionalDomain string
	Retry               utils.RetryOptions
}

func (c AuthConfig) magicLinkTTL() time.Duration {
	if c.MagicLinkTTL > 0 {
		return c.MagicLinkTTL
	}
	return defaultMagicLinkTTL
}

func (c AuthConfig) sessionTTL() time.Duration {
	if c.SessionTTL > 0 {
		return c.SessionTTL
	}
	return defaultSessionTTL
}

func (c AuthConfig) institutionalDomain() string {
	if c.InstitutionalDomain != "" {
		return c.InstitutionalDomain
	}
	return defaultInstitutionalDomain
}

func (c AuthConfig) retry() utils.RetryOptions {
	if c.Retry.InitialDelay > 0 {
		return c.Retry
	}
	return utils.DefaultRetryOptions()
}

type Geolocator interface {
	Lookup(ctx context.Context, ip string) *geo.Data
}

type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, email string, token string, expiresAt time.Time) error
}

// AdminChecker resolves admin status against server-side state. Callers
// treat any error as "not an admin".
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string, userID uuid.UUID) (bool, error)
}

type SessionTokenIssuer interface {
	IssueSessionToken(user entity.User) (string, time.Duration, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
