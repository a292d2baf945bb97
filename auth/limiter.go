package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts signals that login is blocked for the email for a while.
var ErrTooManyAttempts = errors.New("auth: too many login attempts")

// Limiter counts login attempts per email. Check records an attempt and fails
// once the budget for the current window is spent; Reset clears it after a
// successful login.
type Limiter interface {
	Check(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

const (
	DefaultMaxAttempts   = 5
	DefaultAttemptWindow = 15 * time.Minute
)

func attemptKey(email string) string {
	return "login_attempts:" + email
}

// RedisLimiter shares counters between server replicas. It needs Redis 7 for
// EXPIRE NX.
type RedisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: int64(max), window: window}
}

func (l *RedisLimiter) Check(ctx context.Context, email string) error {
	key := attemptKey(email)

	// EXPIRE NX in the same transaction gives every counter a TTL, including
	// ones left without it by an interrupted client.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth: count attempts: %w", err)
	}
	if count := incr.Val(); count > l.max {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, email string) error {
	return l.client.Del(ctx, attemptKey(email)).Err()
}

// MemoryLimiter keeps counters in process for single-node deployments.
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	max    int
	window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, 2*window),
		max:    max,
		window: window,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := attemptKey(email)
	count := 1
	if err := l.cache.Add(key, count, l.window); err != nil {
		count, err = l.cache.IncrementInt(key, 1)
		if err != nil {
			count = 1
			l.cache.Set(key, count, l.window)
		}
	}
	if count > l.max {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, email string) error {
	l.cache.Delete(attemptKey(email))
	return nil
}
