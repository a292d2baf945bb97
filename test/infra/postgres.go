package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"legalpulse/kv"
)

// Harness owns a migrated Postgres schema and the kv store on top of it.
type Harness struct {
	db       *Postgres
	pool     *pgxpool.Pool
	teardown func(context.Context) error
	dsn      string
}

// NewHarness finds a database with Locate and works in its own schema on it.
func NewHarness(ctx context.Context, overrideDSN string) (*Harness, error) {
	pg, err := Locate(ctx, overrideDSN)
	if err != nil {
		return nil, fmt.Errorf("locate postgres: %w", err)
	}

	pool, teardown, err := IsolatedPool(ctx, pg.DSN)
	if err != nil {
		_ = pg.Close(ctx)
		return nil, err
	}

	return &Harness{
		db:       pg,
		pool:     pool,
		teardown: teardown,
		dsn:      pg.DSN,
	}, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Store returns a kv backend bound to the harness schema. Closing it is left to
// Close.
func (h *Harness) Store() kv.Store {
	return kv.NewPostgres(h.pool)
}

// Reset removes every stored record.
func (h *Harness) Reset(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "TRUNCATE TABLE kv_records"); err != nil {
		return fmt.Errorf("truncate kv_records: %w", err)
	}
	return nil
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.db.Close(ctx)
}
