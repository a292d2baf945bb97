package chaos

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalpulse/kv"
)

// ErrInjected is returned by Flaky for every fault it injects.
var ErrInjected = errors.New("chaos: injected fault")

// Flaky wraps a kv backend and fails a fraction of reads and atomic writes.
// Delete is never failed: store commits issue it after the atomic Put.
type Flaky struct {
	kv.Store
	rate     float64
	mu       sync.Mutex
	rng      *rand.Rand
	injected atomic.Int64
}

var (
	_ kv.Store  = (*Flaky)(nil)
	_ kv.Locker = (*Flaky)(nil)
)

func NewFlaky(inner kv.Store, rate float64, seed int64) *Flaky {
	return &Flaky{Store: inner, rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (f *Flaky) Get(ctx context.Context, key string) ([]byte, error) {
	if f.fail() {
		return nil, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *Flaky) GetMany(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if f.fail() {
		return nil, ErrInjected
	}
	return f.Store.GetMany(ctx, keys...)
}

func (f *Flaky) Put(ctx context.Context, entries ...kv.Entry) error {
	if f.fail() {
		return ErrInjected
	}
	return f.Store.Put(ctx, entries...)
}

// Lock forwards to the wrapped backend when it is shared between processes.
func (f *Flaky) Lock(ctx context.Context) (func(context.Context) error, error) {
	if locker, ok := f.Store.(kv.Locker); ok {
		return locker.Lock(ctx)
	}
	return func(context.Context) error { return nil }, nil
}

// Injected returns the number of faults injected so far.
func (f *Flaky) Injected() int64 {
	return f.injected.Load()
}

func (f *Flaky) fail() bool {
	f.mu.Lock()
	hit := f.rng.Float64() < f.rate
	f.mu.Unlock()
	if hit {
		f.injected.Add(1)
	}
	return hit
}

// IsFault reports errors caused by chaos rather than by the code under test.
func IsFault(err error) bool {
	if errors.Is(err, ErrInjected) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57P01" {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// TerminateRandomBackend occasionally kills an idle connection of the current
// database. Connections holding the store advisory lock are spared.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(5) == 0 {
				_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                                       WHERE datname = current_database()
                                         AND pid <> pg_backend_pid()
                                         AND state = 'idle'
                                         AND pid NOT IN (SELECT pid FROM pg_locks WHERE locktype = 'advisory')
                                       ORDER BY random() LIMIT 1`)
			}
		}
	}
}
