package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"membership-api/internal/domain"
	"membership-api/internal/service"
)

const identityKey = "auth_identity"

// JWTAuthMiddleware valida el access token y deja la identidad en el contexto de gin.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			respondError(c, http.StatusInternalServerError, "jwt not configured")
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(c, http.StatusUnauthorized, "missing token")
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(identityKey, service.IdentityFromClaims(claims))
		c.Next()
	}
}

// IdentityFrom devuelve la identidad autenticada puesta por JWTAuthMiddleware.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok && identity.UserID != ""
}
