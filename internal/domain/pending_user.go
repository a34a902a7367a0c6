package domain

import "time"

// PendingUser es un registro aun no confirmado por email.
type PendingUser struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VerificationCode guarda el codigo de registro pendiente de un email.
type VerificationCode struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
