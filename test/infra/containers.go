package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DSNEnv names the variable that points tests at an existing database instead of
// a container.
const DSNEnv = "LEGALPULSE_TEST_PG_DSN"

// Source tells where a located database came from.
type Source string

const (
	SourceOverride  Source = "override"
	SourceEnv       Source = "env"
	SourceContainer Source = "container"
	SourceLocal     Source = "local"
)

// ErrNoPostgres signals that no database could be found or started.
var ErrNoPostgres = errors.New("infra: no postgres available")

// Postgres is a database tests may use. Close releases whatever Locate started
// and leaves reused databases alone.
type Postgres struct {
	DSN       string
	Source    Source
	container *postgres.PostgresContainer
	drop      func(context.Context) error
}

// Locate picks the first available database: override, then DSNEnv, then a
// Postgres 16 container when Docker answers, then a scratch database on a
// local server.
func Locate(ctx context.Context, override string) (*Postgres, error) {
	if override != "" {
		return &Postgres{DSN: override, Source: SourceOverride}, nil
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		return &Postgres{DSN: dsn, Source: SourceEnv}, nil
	}
	if dockerAvailable(ctx) {
		return startContainer(ctx)
	}

	dsn, drop, err := createLocalDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPostgres, err)
	}
	return &Postgres{DSN: dsn, Source: SourceLocal, drop: drop}, nil
}

func startContainer(ctx context.Context) (*Postgres, error) {
	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("legalpulse"),
		postgres.WithUsername("legalpulse"),
		postgres.WithPassword("legalpulse"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("infra: run container: %w", err)
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("infra: container dsn: %w", err)
	}
	return &Postgres{DSN: dsn, Source: SourceContainer, container: c}, nil
}

func (p *Postgres) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	switch {
	case p.container != nil:
		return p.container.Terminate(ctx)
	case p.drop != nil:
		return p.drop(ctx)
	default:
		return nil
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
