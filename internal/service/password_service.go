package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/metrics"
	"membership-api/internal/notify"
	"membership-api/internal/repository"
)

var (
	ErrPasswordRequired         = errors.New("password required")
	ErrPasswordMismatch         = errors.New("passwords do not match")
	ErrPasswordTooShort         = errors.New("password too short")
	ErrPasswordTooLong          = errors.New("password too long")
	ErrPasswordUnchanged        = errors.New("new password equals current password")
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
	ErrTokenMissing             = errors.New("token missing")
	ErrTokenInvalid             = errors.New("token invalid or expired")
	ErrNoPendingChange          = errors.New("no pending password change")
)

// PasswordPolicy agrupa los parametros del ciclo de credenciales.
type PasswordPolicy struct {
	MinLength int
	ResetTTL  time.Duration
	ChangeTTL time.Duration
	// BaseURL es la raiz publica con la que se arman los links de los emails.
	BaseURL string
}

func (p PasswordPolicy) withDefaults() PasswordPolicy {
	if p.MinLength <= 0 {
		p.MinLength = 8
	}
	if p.ResetTTL <= 0 {
		p.ResetTTL = 10 * time.Minute
	}
	if p.ChangeTTL <= 0 {
		p.ChangeTTL = 10 * time.Minute
	}
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	return p
}

// PasswordService emite, verifica y consume los tokens de reset y de cambio de password.
type PasswordService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	notifier notify.Notifier
	cache    UserCache
	throttle RequestThrottle
	policy   PasswordPolicy
	now      func() time.Time
}

func NewPasswordService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	notifier notify.Notifier,
	cache UserCache,
	throttle RequestThrottle,
	policy PasswordPolicy,
) *PasswordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Noop()
	}
	return &PasswordService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		cache:    cache,
		throttle: throttle,
		policy:   policy.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *PasswordService) MinPasswordLength() int {
	return s.policy.MinLength
}

// RequestReset emite un token de reset si la cuenta existe y esta activa.
// Cuentas desconocidas y pedidos limitados devuelven nil igual que un pedido exitoso.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrInvalidEmail
	}

	if s.throttle != nil && !s.throttle.Allow(ctx, email) {
		metrics.PasswordFlow("reset_request", "throttled")
		return nil
	}

	user, err := s.users.GetActiveByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordFlow("reset_request", "unknown")
		return nil
	}
	if err != nil {
		metrics.PasswordFlow("reset_request", "error")
		return err
	}

	raw, hash, err := generatePasswordToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.policy.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.PasswordFlow("reset_request", "unknown")
			return nil
		}
		metrics.PasswordFlow("reset_request", "error")
		return err
	}

	s.notifier.Notify(ctx, notify.Notification{
		Kind:      notify.KindPasswordResetRequested,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		Token:     raw,
		Link:      s.policy.BaseURL + "/auth/reset-password/" + raw,
		ExpiresAt: expiresAt,
	})
	metrics.PasswordFlow("reset_request", "issued")
	s.logger.Info("password reset token issued", zap.String("user_id", user.ID))
	return nil
}

// VerifyResetToken no distingue entre token inexistente y vencido.
func (s *PasswordService) VerifyResetToken(ctx context.Context, raw string) (domain.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.User{}, ErrTokenInvalid
	}
	user, err := s.users.GetByResetTokenHash(ctx, HashPasswordToken(raw), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrTokenInvalid
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *PasswordService) ConfirmReset(ctx context.Context, raw, newPassword, confirmPassword string) error {
	if err := s.checkNewPassword(newPassword, confirmPassword, true); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrTokenInvalid
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user, err := s.users.CommitReset(ctx, HashPasswordToken(raw), newHash, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordFlow("reset_confirm", "invalid")
		return ErrTokenInvalid
	}
	if err != nil {
		metrics.PasswordFlow("reset_confirm", "error")
		return err
	}

	metrics.PasswordFlow("reset_confirm", "committed")
	s.logger.Info("password reset committed", zap.String("user_id", user.ID))
	s.afterCommit(ctx, user)
	return nil
}

type RequestChangeInput struct {
	CurrentPassword string
	NewPassword     string
	// ConfirmPassword es opcional; si viene debe coincidir con NewPassword.
	ConfirmPassword string
}

// RequestChange deja staged el nuevo hash. El password actual sigue vigente
// hasta que el usuario confirme desde el email.
func (s *PasswordService) RequestChange(ctx context.Context, identity domain.Identity, input RequestChangeInput) error {
	if input.CurrentPassword == "" {
		return ErrPasswordRequired
	}
	if err := s.checkNewPassword(input.NewPassword, input.ConfirmPassword, false); err != nil {
		return err
	}
	if strings.TrimSpace(identity.UserID) == "" {
		return ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.IsActive) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, input.CurrentPassword)
	if err != nil {
		return err
	}
	if !ok {
		metrics.PasswordFlow("change_request", "wrong_current")
		return ErrCurrentPasswordIncorrect
	}
	if input.NewPassword == input.CurrentPassword {
		return ErrPasswordUnchanged
	}

	pendingHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	raw, hash, err := generatePasswordToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.policy.ChangeTTL)
	if err := s.users.SetPasswordChange(ctx, user.ID, hash, pendingHash, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		metrics.PasswordFlow("change_request", "error")
		return err
	}

	s.notifier.Notify(ctx, notify.Notification{
		Kind:      notify.KindPasswordChangeRequested,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		Token:     raw,
		Link:      s.policy.BaseURL + "/auth/complete-password-change/" + raw,
		ExpiresAt: expiresAt,
	})
	metrics.PasswordFlow("change_request", "issued")
	s.logger.Info("password change token issued", zap.String("user_id", user.ID))
	return nil
}

func (s *PasswordService) CompletePasswordChange(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrTokenMissing
	}
	hash := HashPasswordToken(raw)
	now := s.now()

	user, err := s.users.GetByChangeTokenHash(ctx, hash, now)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordFlow("change_confirm", "invalid")
		return ErrTokenInvalid
	}
	if err != nil {
		return err
	}
	if user.PendingPasswordHash == "" {
		s.logger.Warn("change token matched without pending password", zap.String("user_id", user.ID))
		metrics.PasswordFlow("change_confirm", "no_pending")
		return ErrNoPendingChange
	}

	user, err = s.users.CommitPasswordChange(ctx, hash, now)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordFlow("change_confirm", "invalid")
		return ErrTokenInvalid
	}
	if err != nil {
		metrics.PasswordFlow("change_confirm", "error")
		return err
	}

	metrics.PasswordFlow("change_confirm", "committed")
	s.logger.Info("password change committed", zap.String("user_id", user.ID))
	s.afterCommit(ctx, user)
	return nil
}

// PurgeExpiredTokens limpia tokens vencidos. No hace falta para la correctitud.
func (s *PasswordService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("expired password tokens cleared", zap.Int64("rows", n))
	return n, nil
}

func (s *PasswordService) checkNewPassword(newPassword, confirmPassword string, confirmRequired bool) error {
	if newPassword == "" || (confirmRequired && confirmPassword == "") {
		return ErrPasswordRequired
	}
	if confirmPassword != "" && confirmPassword != newPassword {
		return ErrPasswordMismatch
	}
	return checkPasswordLength(newPassword, s.policy.MinLength)
}

// checkPasswordLength mide el minimo en runas y el maximo en bytes, que es el limite de bcrypt.
func checkPasswordLength(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// afterCommit corre los efectos secundarios; sus fallos solo se loguean.
func (s *PasswordService) afterCommit(ctx context.Context, user domain.User) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user.ID); err != nil {
			s.logger.Warn("user cache invalidate failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	n := notify.Notification{
		Kind:   notify.KindPasswordChanged,
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName,
	}
	if user.PasswordChangedAt != nil {
		n.OccurredAt = *user.PasswordChangedAt
	}
	s.notifier.Notify(ctx, n)
}
