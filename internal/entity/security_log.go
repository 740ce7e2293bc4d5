package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess           SecurityAction = "login_success"
	MagicLinkRequested     SecurityAction = "magic_link_requested"
	MagicLinkAuthenticated SecurityAction = "magic_link_authenticated"
	MagicLinkReplayed      SecurityAction = "magic_link_replayed"
	Logout                 SecurityAction = "logout"
	SessionRevoked         SecurityAction = "session_revoked"
	SessionsRevokedOthers  SecurityAction = "sessions_revoked_others"
	RoleDowngraded         SecurityAction = "role_downgraded"
	AccessRequestSubmitted SecurityAction = "access_request_submitted"
	AccessRequestReviewed  SecurityAction = "access_request_reviewed"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	Email  *string    `gorm:"type:varchar(255)"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(40);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
