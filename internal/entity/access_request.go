package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AccessRequestStatus string

const (
	AccessRequestPending  AccessRequestStatus = "pending"
	AccessRequestApproved AccessRequestStatus = "approved"
	AccessRequestDenied   AccessRequestStatus = "denied"
)

type AccessRequest struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	Email      string              `gorm:"type:varchar(255);not null;index" json:"email"`
	FullName   string              `gorm:"type:varchar(255);not null" json:"full_name"`
	Department string              `gorm:"type:varchar(255)" json:"department,omitempty"`
	Reason     string              `gorm:"type:text" json:"reason,omitempty"`
	Status     AccessRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	IPAddress       *string        `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent       *string        `gorm:"type:text" json:"user_agent,omitempty"`
	LocationCity    *string        `gorm:"type:varchar(100)" json:"location_city,omitempty"`
	LocationRegion  *string        `gorm:"type:varchar(100)" json:"location_region,omitempty"`
	LocationCountry *string        `gorm:"type:varchar(100)" json:"location_country,omitempty"`
	LocationISP     *string        `gorm:"type:varchar(255)" json:"location_isp,omitempty"`
	GeoData         datatypes.JSON `json:"geo_data,omitempty"`

	ReviewedBy *uuid.UUID `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
