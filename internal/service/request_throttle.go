package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RequestThrottle limita pedidos de reset por email. Un pedido rechazado
// no se informa al cliente.
type RequestThrottle interface {
	Allow(ctx context.Context, key string) bool
}

type memoryRequestThrottle struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
	// lastSweep marca la ultima pasada que borro claves sin hits en la ventana.
	lastSweep time.Time
}

// NewMemoryRequestThrottle crea un throttle de ventana deslizante en memoria.
func NewMemoryRequestThrottle(window time.Duration, max int) RequestThrottle {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRequestThrottle{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryRequestThrottle) Allow(_ context.Context, key string) bool {
	key = normalizeEmail(key)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

func (l *memoryRequestThrottle) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

const redisThrottleScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRequestThrottle struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisRequestThrottle comparte el contador entre instancias. Devuelve nil sin cliente.
func NewRedisRequestThrottle(client *redis.Client, window time.Duration, max int) RequestThrottle {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRequestThrottle{
		client: client,
		window: window,
		max:    max,
		prefix: "pwreset:rl:",
	}
}

// Allow falla abierto si redis no responde.
func (l *redisRequestThrottle) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := normalizeEmail(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisThrottleScript, []string{l.prefix + normalizedKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
