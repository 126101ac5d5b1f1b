// Package notify entrega los avisos posteriores a cada transicion de credenciales.
// Es best-effort: ningun error de envio vuelve al llamador.
package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindPasswordResetRequested  Kind = "password_reset_requested"
	KindPasswordChangeRequested Kind = "password_change_requested"
	KindPasswordChanged         Kind = "password_changed"
)

// Notification describe un aviso a entregar. Token y Link llevan el token crudo
// y solo viajan por el canal de notificacion.
type Notification struct {
	Kind       Kind
	UserID     string
	Email      string
	Name       string
	Token      string
	Link       string
	ExpiresAt  time.Time
	OccurredAt time.Time
}

// Notifier no devuelve error: un fallo de notificacion no puede afectar la operacion principal.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapta una funcion a Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	if f != nil {
		f(ctx, n)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// Noop descarta todas las notificaciones.
func Noop() Notifier {
	return noopNotifier{}
}
