package domain

import "time"

type SystemMessageKind string

const (
	SystemMessagePasswordResetRequested  SystemMessageKind = "password_reset_requested"
	SystemMessagePasswordChangeRequested SystemMessageKind = "password_change_requested"
	SystemMessagePasswordChanged         SystemMessageKind = "password_changed"
)

// SystemMessage es un aviso in-app asociado a una transicion de credenciales.
type SystemMessage struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      SystemMessageKind `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	CreatedAt time.Time         `json:"created_at"`
}
