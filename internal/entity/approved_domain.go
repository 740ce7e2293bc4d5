package entity

import (
	"time"

	"github.com/google/uuid"
)

type ApprovedDomain struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Domain    string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
}
