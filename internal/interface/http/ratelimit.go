package http

import (
	"context"
	"sync"
	"time"

	redisstore "github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter decides whether a request from the given client key may
// proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis-backed limiter
// ─────────────────────────────────────────────────────────────────────────────

// RedisRateLimiter implements a fixed-window counter in Redis, shared
// across API instances. The counter key expires after one window; the
// first increment in a window sets the expiry.
type RedisRateLimiter struct {
	cache  *redisstore.Cache
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a Redis-backed rate limiter.
func NewRedisRateLimiter(cache *redisstore.Cache, limit int, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{cache: cache, limit: limit, window: window}
}

// Allow increments the client's window counter and compares it with the
// limit.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	counterKey := redisstore.PrefixRateLimit + key

	count, err := l.cache.Incr(ctx, counterKey)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.cache.Expire(ctx, counterKey, l.window); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fallback
// ─────────────────────────────────────────────────────────────────────────────

// MemoryRateLimiter is a process-local sliding-window limiter. Used when
// no Redis is configured; limits then apply per instance, not globally.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	lastGC   time.Time
}

// NewMemoryRateLimiter creates an in-memory rate limiter.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		lastGC:   time.Now(),
	}
}

// Allow records the request and reports whether the client is under the
// limit. Never returns an error.
func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	valid := l.requests[key][:0]
	for _, t := range l.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.limit {
		l.requests[key] = valid
		return false, nil
	}

	l.requests[key] = append(valid, now)

	// Piggyback stale-key cleanup on request handling instead of a
	// background goroutine.
	if now.Sub(l.lastGC) > l.window {
		for k, ts := range l.requests {
			if len(ts) == 0 || !ts[len(ts)-1].After(windowStart) {
				delete(l.requests, k)
			}
		}
		l.lastGC = now
	}

	return true, nil
}
