package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"membership-api/internal/domain"
	"membership-api/internal/repository"
)

// UserService coordina registro, login y lectura de perfil.
type UserService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	messages  repository.SystemMessageRepository
	hasher    PasswordHasher
	cache     UserCache
	minLength int
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	messages repository.SystemMessageRepository,
	hasher PasswordHasher,
	cache UserCache,
	minPasswordLength int,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minPasswordLength <= 0 {
		minPasswordLength = 8
	}
	return &UserService{
		logger:    logger,
		users:     users,
		messages:  messages,
		hasher:    hasher,
		cache:     cache,
		minLength: minPasswordLength,
	}
}

type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailTaken         = errors.New("email already registered")
)

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	email := normalizeEmail(input.Email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if input.Password == "" {
		return domain.User{}, ErrPasswordRequired
	}
	if err := checkPasswordLength(input.Password, s.minLength); err != nil {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		IsActive:     true,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetActiveByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil || !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetProfile lee a traves del cache; el cache se invalida en cada commit de password.
func (s *UserService) GetProfile(ctx context.Context, identity domain.Identity) (domain.User, error) {
	if s.cache != nil {
		if user, ok := s.cache.Get(ctx, identity.UserID); ok {
			return user, nil
		}
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	user = publicProfile(user)
	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			s.logger.Warn("user cache set failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *UserService) ListSystemMessages(ctx context.Context, identity domain.Identity, limit int) ([]domain.SystemMessage, error) {
	if s.messages == nil {
		return nil, nil
	}
	return s.messages.ListByUser(ctx, identity.UserID, limit)
}
