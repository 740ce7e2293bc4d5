package entity

import (
	"time"

	"github.com/google/uuid"
)

// InvitationCode lets a user outside the allow-lists sign in. A nil Email
// makes the code usable by anyone.
type InvitationCode struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`

	Email     *string    `gorm:"type:varchar(255);index" json:"email,omitempty"`
	MaxUses   int        `gorm:"not null;default:1" json:"max_uses"`
	UsedCount int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c InvitationCode) Live(now time.Time) bool {
	if !c.IsActive || c.UsedCount >= c.MaxUses {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
