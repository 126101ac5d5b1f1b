package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/service"
)

const (
	msgForgotPassword       = "If that email address is in our system, you will receive password reset instructions."
	msgPasswordsDoNotMatch  = "Passwords do not match."
	msgCurrentIncorrect     = "Current password is incorrect."
	msgNoPendingChange      = "No pending password change found."
	msgChangeTokenMissing   = "Password change token is required."
	msgInvalidChangeToken   = "Invalid or expired password change token."
	msgPasswordUnchanged    = "New password must be different from the current password."
	msgPasswordTooLong      = "Password must be at most 72 bytes long."
	msgUserNotFound         = "User not found."
	msgResetTokenValid      = "Reset token is valid."
	msgPasswordResetDone    = "Password has been reset."
	msgChangeEmailSent      = "Check your email to confirm the password change."
	msgPasswordChangeDone   = "Password has been changed."
	msgPasswordFieldMissing = "Password fields are required."
)

type passwordFlows interface {
	resetTokenVerifier
	MinPasswordLength() int
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, raw, newPassword, confirmPassword string) error
	RequestChange(ctx context.Context, identity domain.Identity, input service.RequestChangeInput) error
	CompletePasswordChange(ctx context.Context, raw string) error
}

// PasswordHandler expone los flujos de reset y cambio de password.
type PasswordHandler struct {
	logger    *zap.Logger
	passwords passwordFlows
}

func NewPasswordHandler(logger *zap.Logger, passwords passwordFlows) *PasswordHandler {
	return &PasswordHandler{logger: logger, passwords: passwords}
}

// ForgotPassword maneja POST /auth/forgot-password. La respuesta no depende
// de que la cuenta exista.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.passwords.RequestReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			respondError(c, http.StatusBadRequest, "email: must be a valid email address.")
			return
		}
		h.logger.Error("forgot password failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	respond(c, http.StatusOK, msgForgotPassword, nil)
}

// CheckResetToken maneja GET /auth/reset-password/:token detras de ResetTokenMiddleware.
func (h *PasswordHandler) CheckResetToken(c *gin.Context) {
	if _, ok := resetTokenFrom(c); !ok {
		respondError(c, http.StatusBadRequest, msgInvalidResetToken)
		return
	}
	respond(c, http.StatusOK, msgResetTokenValid, nil)
}

// ResetPassword maneja POST /auth/reset-password/:token detras de ResetTokenMiddleware.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	tok, ok := resetTokenFrom(c)
	if !ok {
		respondError(c, http.StatusBadRequest, msgInvalidResetToken)
		return
	}
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.passwords.ConfirmReset(c.Request.Context(), tok.Raw, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.writePasswordError(c, "reset password failed", msgInvalidResetToken, err)
		return
	}
	respond(c, http.StatusOK, msgPasswordResetDone, nil)
}

// RequestPasswordChange maneja POST /auth/request-password-change (requiere JWT).
func (h *PasswordHandler) RequestPasswordChange(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing token")
		return
	}
	var req requestPasswordChangeRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.passwords.RequestChange(c.Request.Context(), identity, service.RequestChangeInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.writePasswordError(c, "request password change failed", msgInvalidChangeToken, err)
		return
	}
	respond(c, http.StatusOK, msgChangeEmailSent, nil)
}

// CompletePasswordChange maneja GET y POST /auth/complete-password-change/:token.
func (h *PasswordHandler) CompletePasswordChange(c *gin.Context) {
	err := h.passwords.CompletePasswordChange(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writePasswordError(c, "complete password change failed", msgInvalidChangeToken, err)
		return
	}
	respond(c, http.StatusOK, msgPasswordChangeDone, nil)
}

// writePasswordError traduce los errores del servicio a status y mensaje.
// Los errores inesperados se loguean y salen como 500 generico.
func (h *PasswordHandler) writePasswordError(c *gin.Context, logMsg, invalidTokenMsg string, err error) {
	switch {
	case errors.Is(err, service.ErrPasswordRequired):
		respondError(c, http.StatusBadRequest, msgPasswordFieldMissing)
	case errors.Is(err, service.ErrPasswordMismatch):
		respondError(c, http.StatusBadRequest, msgPasswordsDoNotMatch)
	case errors.Is(err, service.ErrPasswordTooShort):
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters long.", h.passwords.MinPasswordLength()))
	case errors.Is(err, service.ErrPasswordTooLong):
		respondError(c, http.StatusBadRequest, msgPasswordTooLong)
	case errors.Is(err, service.ErrPasswordUnchanged):
		respondError(c, http.StatusBadRequest, msgPasswordUnchanged)
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		respondError(c, http.StatusBadRequest, msgCurrentIncorrect)
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, service.ErrTokenMissing):
		respondError(c, http.StatusBadRequest, msgChangeTokenMissing)
	case errors.Is(err, service.ErrNoPendingChange):
		respondError(c, http.StatusBadRequest, msgNoPendingChange)
	case errors.Is(err, service.ErrTokenInvalid):
		respondError(c, http.StatusBadRequest, invalidTokenMsg)
	default:
		h.logger.Error(logMsg, zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
	}
}
