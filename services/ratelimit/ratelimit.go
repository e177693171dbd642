// Package ratelimit counts requests per key over fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more request for key fits in the current window,
// and how long until the window resets when it does not.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

var _ Limiter = (*redisLimiter)(nil) // interface compliance check

func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *redisLimiter {
	return &redisLimiter{client: client, limit: limit, window: period}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = "rate_limit:" + key
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "incrementing counter")
	}
	if count == 1 {
		if err = l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "setting counter expiry")
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}
	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

type window struct {
	count   int
	resetAt time.Time
}

// memoryLimiter is the single process fallback when no redis is configured.
// Expired windows are swept at most once per period.
type memoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	period    time.Duration
	nextSweep time.Time
	nowFunc   func() time.Time
}

var _ Limiter = (*memoryLimiter)(nil) // interface compliance check

func NewMemoryLimiter(limit int, period time.Duration) *memoryLimiter {
	return &memoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		nowFunc: time.Now,
	}
}

// sweep drops the expired windows; l.mu must be held.
func (l *memoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.nextSweep = now.Add(l.period)
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.sweep(now)
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++
	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}
