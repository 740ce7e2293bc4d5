package entity

import (
	"time"

	"github.com/google/uuid"
)

// PendingAuthSession bridges the device that asks for a magic link and the
// device that clicks it. IsAuthenticated flips to true once and never back.
// TokenHash belongs to the polling device, VerifyTokenHash to the emailed
// link; neither token is accepted in place of the other.
type PendingAuthSession struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TokenHash       string `gorm:"type:char(64);not null;uniqueIndex"`
	VerifyTokenHash string `gorm:"type:char(64);not null;uniqueIndex"`
	Email           string `gorm:"type:varchar(255);not null;index"`

	DeviceInfo        string `gorm:"type:text"`
	DeviceFingerprint string `gorm:"type:varchar(32)"`

	IsAuthenticated bool `gorm:"not null;default:false"`
	AuthenticatedAt *time.Time
	AuthenticatedIP *string `gorm:"type:varchar(45)"`

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (p PendingAuthSession) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}
