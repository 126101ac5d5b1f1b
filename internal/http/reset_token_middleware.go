package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/service"
)

const resetTokenKey = "reset_token"

const msgInvalidResetToken = "Invalid or expired reset token."

// resetToken es el token de la URL ya verificado contra el store.
type resetToken struct {
	Raw  string
	User domain.User
}

type resetTokenVerifier interface {
	VerifyResetToken(ctx context.Context, raw string) (domain.User, error)
}

// ResetTokenMiddleware resuelve :token antes de que el handler vea el body.
// Token ausente, desconocido o vencido responde siempre el mismo 400.
func ResetTokenMiddleware(logger *zap.Logger, verifier resetTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("token")
		user, err := verifier.VerifyResetToken(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, service.ErrTokenInvalid) {
				respondError(c, http.StatusBadRequest, msgInvalidResetToken)
				return
			}
			logger.Error("verify reset token failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, msgServerError)
			return
		}
		c.Set(resetTokenKey, resetToken{Raw: raw, User: user})
		c.Next()
	}
}

func resetTokenFrom(c *gin.Context) (resetToken, bool) {
	val, ok := c.Get(resetTokenKey)
	if !ok {
		return resetToken{}, false
	}
	tok, ok := val.(resetToken)
	return tok, ok
}
