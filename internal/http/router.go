package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"membership-api/internal/service"
)

// HealthCheck informa si las dependencias del proceso responden.
type HealthCheck func(ctx context.Context) error

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	userH *UserHandler,
	passwordH *PasswordHandler,
	passwords resetTokenVerifier,
	jwtSvc *service.JWTService,
	health HealthCheck,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthHandler(health))

	api := r.Group("")
	api.Use(jsonContentTypeMiddleware())

	requireAuth := JWTAuthMiddleware(jwtSvc)
	requireResetToken := ResetTokenMiddleware(logger, passwords)

	auth := api.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)

	auth.POST("/forgot-password", passwordH.ForgotPassword)
	auth.GET("/reset-password", requireResetToken, passwordH.CheckResetToken)
	auth.GET("/reset-password/:token", requireResetToken, passwordH.CheckResetToken)
	auth.POST("/reset-password", requireResetToken, passwordH.ResetPassword)
	auth.POST("/reset-password/:token", requireResetToken, passwordH.ResetPassword)
	auth.POST("/request-password-change", requireAuth, passwordH.RequestPasswordChange)
	for _, path := range []string{"/complete-password-change", "/complete-password-change/:token"} {
		auth.GET(path, passwordH.CompletePasswordChange)
		auth.POST(path, passwordH.CompletePasswordChange)
	}

	users := api.Group("/users", requireAuth)
	users.GET("/me", userH.Me)
	users.GET("/me/messages", userH.Messages)

	return r
}

func healthHandler(health HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
// Se loguea la ruta registrada y no la URL, que puede traer tokens.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
