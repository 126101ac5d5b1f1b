package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"membership-api/internal/domain"
)

// UserCache guarda perfiles publicos por id. Se invalida despues de cada cambio de password.
type UserCache interface {
	Get(ctx context.Context, id string) (domain.User, bool)
	Set(ctx context.Context, user domain.User) error
	Invalidate(ctx context.Context, id string) error
}

type cachedUser struct {
	user      domain.User
	expiresAt time.Time
}

type memoryUserCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cachedUser
	now   func() time.Time
}

func NewMemoryUserCache(ttl time.Duration) UserCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &memoryUserCache{
		ttl:   ttl,
		items: make(map[string]cachedUser),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *memoryUserCache) Get(_ context.Context, id string) (domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return domain.User{}, false
	}
	if c.now().After(item.expiresAt) {
		delete(c.items, id)
		return domain.User{}, false
	}
	return item.user, true
}

func (c *memoryUserCache) Set(_ context.Context, user domain.User) error {
	if user.ID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[user.ID] = cachedUser{user: publicProfile(user), expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryUserCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisUserCache struct {
	client redisKVClient
	ttl    time.Duration
	prefix string
}

func NewRedisUserCache(client *redis.Client, ttl time.Duration) UserCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisUserCache{client: client, ttl: ttl, prefix: "user:profile:"}
}

func (c *redisUserCache) Get(ctx context.Context, id string) (domain.User, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		return domain.User{}, false
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, false
	}
	return user, true
}

func (c *redisUserCache) Set(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return nil
	}
	raw, err := json.Marshal(publicProfile(user))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.client.Set(ctx, c.prefix+user.ID, raw, c.ttl).Err()
}

func (c *redisUserCache) Invalidate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	err := c.client.Del(ctx, c.prefix+id).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// publicProfile descarta todo el material de credenciales antes de cachear.
func publicProfile(u domain.User) domain.User {
	return domain.User{
		ID:                u.ID,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		IsActive:          u.IsActive,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
	}
}
