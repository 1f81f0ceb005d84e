package models

import "time"

// PasswordReset is a single-use reset grant. Only the token hash is stored.
type PasswordReset struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	TenantID  string     `json:"tenantId"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}
