package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the portal profile created on first successful login.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Role  UserRole  `gorm:"type:varchar(20);default:'user';not null"`

	LastLoginAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []UserSession
}

func (User) TableName() string { return "user_profiles" }
