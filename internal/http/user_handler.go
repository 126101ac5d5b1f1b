package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/service"
)

type accounts interface {
	Register(ctx context.Context, input service.RegisterInput) (domain.User, error)
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	GetProfile(ctx context.Context, identity domain.Identity) (domain.User, error)
	ListSystemMessages(ctx context.Context, identity domain.Identity, limit int) ([]domain.SystemMessage, error)
}

// UserHandler mantiene dependencias para endpoints de usuarios y sesiones.
type UserHandler struct {
	logger   *zap.Logger
	userServ accounts
	jwtServ  *service.JWTService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ accounts, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, http.StatusBadRequest, "email: must be a valid email address.")
		case errors.Is(err, service.ErrPasswordRequired), errors.Is(err, service.ErrPasswordTooShort):
			respondError(c, http.StatusBadRequest, "Password is too short.")
		case errors.Is(err, service.ErrPasswordTooLong):
			respondError(c, http.StatusBadRequest, msgPasswordTooLong)
		case errors.Is(err, service.ErrEmailTaken):
			respondError(c, http.StatusConflict, "Email is already registered.")
		default:
			h.logger.Error("register failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	tokens, err := h.issueTokens(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	respond(c, http.StatusCreated, "", gin.H{"user": user, "tokens": tokens})
}

// Login maneja POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}

	tokens, err := h.issueTokens(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": user, "tokens": tokens})
}

// RefreshToken maneja POST /auth/refresh.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid token")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.jwtServ == nil {
		respondError(c, http.StatusInternalServerError, "jwt not configured")
		return
	}
	_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing token")
		return
	}
	user, err := h.userServ.GetProfile(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.logger.Error("get profile failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": user})
}

// Messages maneja GET /users/me/messages?limit=N.
func (h *UserHandler) Messages(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing token")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.userServ.ListSystemMessages(c.Request.Context(), identity, limit)
	if err != nil {
		h.logger.Error("list system messages failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, msgServerError)
		return
	}
	if msgs == nil {
		msgs = []domain.SystemMessage{}
	}
	respond(c, http.StatusOK, "", gin.H{"messages": msgs})
}

func (h *UserHandler) issueTokens(ctx context.Context, user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(ctx, user)
}
