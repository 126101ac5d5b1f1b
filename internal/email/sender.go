package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para los correos del ciclo de credenciales.
// El link incluye el token crudo; nunca se loguea.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error
	SendPasswordChangeConfirmation(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, toEmail, name string, changedAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendPasswordReset(context.Context, string, string, string, time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordChangeConfirmation(context.Context, string, string, string, time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordChanged(context.Context, string, string, time.Time) error {
	return s.err()
}
