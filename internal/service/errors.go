package service

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionExpired          = errors.New("Session has expired")
	ErrSessionNotAuthenticated = errors.New("session not authenticated yet")
	ErrEmailNotAllowed         = errors.New("email not allowed to authenticate")
	ErrInvitationRequired      = errors.New("invitation code required")
	ErrInvalidInvitationCode   = errors.New("invalid invitation code")
	ErrMagicLinkDelivery       = errors.New("failed to send magic link")
	ErrAccessRequestPending    = errors.New("an access request for this email is already pending")
	ErrAccessAlreadyApproved   = errors.New("access has already been approved for this email")
	ErrAccessRequestNotFound   = errors.New("access request not found")
	ErrAccessRequestReviewed   = errors.New("access request already reviewed")
	ErrAdminConfigUnavailable  = errors.New("Failed to fetch admin configuration")
	ErrUserNotFound            = errors.New("user not found")
)
