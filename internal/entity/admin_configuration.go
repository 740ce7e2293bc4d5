package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const AdminEmailsConfigKey = "admin_emails"

type AdminConfiguration struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConfigKey   string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	ConfigValue datatypes.JSON `gorm:"not null"`
	UpdatedAt   time.Time
}
