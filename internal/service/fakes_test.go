package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"membership-api/internal/domain"
	"membership-api/internal/notify"
	"membership-api/internal/repository"
)

// memUserRepo reproduce en memoria las escrituras condicionadas del repositorio pgx.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func newMemUserRepo(users ...domain.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetActiveByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) && u.IsActive {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memUserRepo) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetTokenHash = tokenHash
	u.PasswordResetExpiresAt = &expiresAt
	r.users[id] = u
	return nil
}

func (r *memUserRepo) GetByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	for _, u := range r.users {
		if u.PasswordResetTokenHash == tokenHash && u.HasPendingReset(now) && u.IsActive {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memUserRepo) CommitReset(_ context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	for id, u := range r.users {
		if u.PasswordResetTokenHash != tokenHash || !u.HasPendingReset(now) || !u.IsActive {
			continue
		}
		changedAt := now
		u.PasswordHash = newPasswordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpiresAt = nil
		u.PasswordChangeTokenHash = ""
		u.PasswordChangeExpiresAt = nil
		u.PendingPasswordHash = ""
		r.users[id] = u
		return u, nil
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memUserRepo) SetPasswordChange(_ context.Context, id, tokenHash, pendingHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[id]
	if !ok || !u.IsActive {
		return repository.ErrNotFound
	}
	u.PasswordChangeTokenHash = tokenHash
	u.PasswordChangeExpiresAt = &expiresAt
	u.PendingPasswordHash = pendingHash
	r.users[id] = u
	return nil
}

func (r *memUserRepo) GetByChangeTokenHash(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	for _, u := range r.users {
		if u.PasswordChangeTokenHash == tokenHash && u.PasswordChangeExpiresAt != nil && now.Before(*u.PasswordChangeExpiresAt) && u.IsActive {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memUserRepo) CommitPasswordChange(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.User{}, r.err
	}
	for id, u := range r.users {
		if u.PasswordChangeTokenHash != tokenHash || !u.HasPendingChange(now) || !u.IsActive {
			continue
		}
		changedAt := now
		u.PasswordHash = u.PendingPasswordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordChangeTokenHash = ""
		u.PasswordChangeExpiresAt = nil
		u.PendingPasswordHash = ""
		r.users[id] = u
		return u, nil
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *memUserRepo) ClearExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for id, u := range r.users {
		touched := false
		if u.PasswordResetExpiresAt != nil && !now.Before(*u.PasswordResetExpiresAt) {
			u.PasswordResetTokenHash = ""
			u.PasswordResetExpiresAt = nil
			touched = true
		}
		if u.PasswordChangeExpiresAt != nil && !now.Before(*u.PasswordChangeExpiresAt) {
			u.PasswordChangeTokenHash = ""
			u.PasswordChangeExpiresAt = nil
			u.PendingPasswordHash = ""
			touched = true
		}
		if touched {
			r.users[id] = u
			n++
		}
	}
	return n, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.sent...)
}

func (n *recordingNotifier) last() notify.Notification {
	all := n.all()
	if len(all) == 0 {
		return notify.Notification{}
	}
	return all[len(all)-1]
}

type failingCache struct {
	invalidated []string
}

func (c *failingCache) Get(context.Context, string) (domain.User, bool) { return domain.User{}, false }
func (c *failingCache) Set(context.Context, domain.User) error          { return errors.New("cache down") }
func (c *failingCache) Invalidate(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	return errors.New("cache down")
}

type denyThrottle struct{}

func (denyThrottle) Allow(context.Context, string) bool { return false }
