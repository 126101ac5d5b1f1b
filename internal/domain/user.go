package domain

import "time"

// User es el registro de cuenta con sus credenciales.
// Los campos de token solo existen mientras hay un flujo de reset o cambio abierto
// y siempre se guardan hasheados.
type User struct {
	ID                      string     `json:"id"`
	Email                   string     `json:"email"`
	DisplayName             string     `json:"display_name,omitempty"`
	IsActive                bool       `json:"is_active"`
	PasswordHash            string     `json:"-"`
	PasswordChangedAt       *time.Time `json:"password_changed_at,omitempty"`
	PasswordResetTokenHash  string     `json:"-"`
	PasswordResetExpiresAt  *time.Time `json:"-"`
	PasswordChangeTokenHash string     `json:"-"`
	PasswordChangeExpiresAt *time.Time `json:"-"`
	PendingPasswordHash     string     `json:"-"`
	CreatedAt               time.Time  `json:"created_at"`
}

// HasPendingReset indica si hay un token de reset utilizable en now.
func (u User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetTokenHash != "" &&
		u.PasswordResetExpiresAt != nil &&
		now.Before(*u.PasswordResetExpiresAt)
}

// HasPendingChange indica si hay un cambio de password staged y confirmable en now.
func (u User) HasPendingChange(now time.Time) bool {
	return u.PasswordChangeTokenHash != "" &&
		u.PasswordChangeExpiresAt != nil &&
		u.PendingPasswordHash != "" &&
		now.Before(*u.PasswordChangeExpiresAt)
}

// Identity es la identidad autenticada que cada handler recibe explicitamente.
type Identity struct {
	UserID string
	Email  string
}

// TokenKind distingue los dos flujos de credenciales.
type TokenKind string

const (
	TokenKindReset  TokenKind = "reset"
	TokenKindChange TokenKind = "change"
)
