package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserSession is a persisted bearer session. Only the SHA-256 of the bearer
// token is stored. ExpiresAt is fixed at creation; LastActivity moves on its
// own and never extends it.
type UserSession struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	TokenHash string `gorm:"type:char(64);not null;uniqueIndex" json:"-"`

	DeviceName  string `gorm:"type:varchar(100)" json:"device_name"`
	DeviceType  string `gorm:"type:varchar(20)" json:"device_type"`
	BrowserName string `gorm:"type:varchar(50)" json:"browser_name"`
	OSName      string `gorm:"type:varchar(50)" json:"os_name"`

	IPAddress       *string `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	LocationCity    *string `gorm:"type:varchar(100)" json:"location_city,omitempty"`
	LocationRegion  *string `gorm:"type:varchar(100)" json:"location_region,omitempty"`
	LocationCountry *string `gorm:"type:varchar(100)" json:"location_country,omitempty"`
	LocationISP     *string `gorm:"type:varchar(255)" json:"location_isp,omitempty"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `gorm:"not null" json:"last_activity"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
}

// Valid reports whether the session may still authenticate requests.
func (s UserSession) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
