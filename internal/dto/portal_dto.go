package dto

import "time"

// The two portal endpoints below keep the camelCase payloads their browser
// clients already send and expect.

type AdminStatusRequest struct {
	Email  string `json:"email" validate:"required,email"`
	UserID string `json:"userId" validate:"required,uuid"`
}

type AdminStatusResponse struct {
	IsAdmin   bool      `json:"isAdmin"`
	Timestamp time.Time `json:"timestamp"`
}

type AccessRequestSubmission struct {
	Email      string `json:"email" validate:"required,email,max=255"`
	FullName   string `json:"fullName" validate:"required,max=255"`
	Department string `json:"department" validate:"omitempty,max=255"`
	Reason     string `json:"reason" validate:"omitempty,max=2000"`
}

type AccessRequestSubmitted struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
}
