package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker is implemented by backends shared between processes. Lock blocks until
// the store-wide lock is held or ctx is done and returns the release func.
type Locker interface {
	Lock(ctx context.Context) (func(context.Context) error, error)
}

// advisoryLockID keys the store-wide Postgres advisory lock.
const advisoryLockID int64 = 0x4c50_4b56

var (
	_ Locker = (*Postgres)(nil)
	_ Locker = (*Redis)(nil)
)

// Lock holds a session-level advisory lock on a dedicated pooled connection.
func (p *Postgres) Lock(ctx context.Context) (func(context.Context) error, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv: acquire lock conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("kv: advisory lock: %w", err)
	}

	return func(ctx context.Context) error {
		defer conn.Release()
		var released bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID).Scan(&released); err != nil {
			return fmt.Errorf("kv: advisory unlock: %w", err)
		}
		if !released {
			return errors.New("kv: advisory lock was not held")
		}
		return nil
	}, nil
}

const (
	redisLockKey  = "lock"
	redisLockTTL  = 10 * time.Second
	redisLockWait = 25 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock takes a SET NX lease that expires on its own if the holder dies.
func (r *Redis) Lock(ctx context.Context) (func(context.Context) error, error) {
	key := r.prefix + redisLockKey
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("kv: redis lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockWait):
		}
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("kv: redis unlock: %w", err)
		}
		return nil
	}, nil
}
