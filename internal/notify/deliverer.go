package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/email"
	"membership-api/internal/metrics"
	"membership-api/internal/repository"
)

// Deliverer hace el trabajo real: email con reintentos y mensaje de sistema in-app.
type Deliverer struct {
	logger     *zap.Logger
	sender     email.Sender
	messages   repository.SystemMessageRepository
	maxRetries uint64
	backoff    time.Duration
	now        func() time.Time
}

func NewDeliverer(logger *zap.Logger, sender email.Sender, messages repository.SystemMessageRepository, maxRetries int) *Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Deliverer{
		logger:     logger,
		sender:     sender,
		messages:   messages,
		maxRetries: uint64(maxRetries),
		backoff:    200 * time.Millisecond,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Deliver nunca falla hacia afuera; loguea y cuenta cada fallo.
func (d *Deliverer) Deliver(ctx context.Context, n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = d.now()
	}
	d.sendEmail(ctx, n)
	d.recordSystemMessage(ctx, n)
}

func (d *Deliverer) sendEmail(ctx context.Context, n Notification) {
	if d.sender == nil {
		metrics.Notification(string(n.Kind), "email", "skipped")
		return
	}

	b := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := d.send(ctx, n); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("notification email failed",
			zap.String("kind", string(n.Kind)),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		metrics.Notification(string(n.Kind), "email", "failed")
		return
	}
	metrics.Notification(string(n.Kind), "email", "sent")
}

func (d *Deliverer) send(ctx context.Context, n Notification) error {
	switch n.Kind {
	case KindPasswordResetRequested:
		return d.sender.SendPasswordReset(ctx, n.Email, n.Name, n.Link, n.ExpiresAt)
	case KindPasswordChangeRequested:
		return d.sender.SendPasswordChangeConfirmation(ctx, n.Email, n.Name, n.Link, n.ExpiresAt)
	case KindPasswordChanged:
		return d.sender.SendPasswordChanged(ctx, n.Email, n.Name, n.OccurredAt)
	default:
		return errors.New("unknown notification kind")
	}
}

func (d *Deliverer) recordSystemMessage(ctx context.Context, n Notification) {
	if d.messages == nil || n.UserID == "" {
		return
	}
	msg := systemMessageFor(n)
	msg.ID = uuid.NewString()
	msg.CreatedAt = n.OccurredAt
	if err := d.messages.Create(ctx, msg); err != nil {
		d.logger.Warn("system message create failed",
			zap.String("kind", string(n.Kind)),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		metrics.Notification(string(n.Kind), "system_message", "failed")
		return
	}
	metrics.Notification(string(n.Kind), "system_message", "sent")
}

func systemMessageFor(n Notification) domain.SystemMessage {
	msg := domain.SystemMessage{UserID: n.UserID}
	switch n.Kind {
	case KindPasswordResetRequested:
		msg.Kind = domain.SystemMessagePasswordResetRequested
		msg.Title = "Password reset requested"
		msg.Body = "A password reset link was sent to your email address."
	case KindPasswordChangeRequested:
		msg.Kind = domain.SystemMessagePasswordChangeRequested
		msg.Title = "Confirm your password change"
		msg.Body = "Check your email to confirm the new password. Your current password stays active until then."
	default:
		msg.Kind = domain.SystemMessagePasswordChanged
		msg.Title = "Password changed"
		msg.Body = "Your password was changed. If this was not you, reset it immediately."
	}
	return msg
}

// Inline entrega en el mismo goroutine. Util para el CLI y para tests.
type Inline struct {
	d *Deliverer
}

func NewInline(d *Deliverer) *Inline {
	return &Inline{d: d}
}

func (i *Inline) Notify(ctx context.Context, n Notification) {
	i.d.Deliver(context.WithoutCancel(ctx), n)
}
