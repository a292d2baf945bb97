// Package app assembles the services shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"legalpulse/auth"
	"legalpulse/config"
	"legalpulse/db"
	"legalpulse/directory"
	"legalpulse/kv"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/session"
	"legalpulse/store"
)

// App holds the wired services for one process.
type App struct {
	Config        config.Config
	Logger        *slog.Logger
	Notifier      notify.Notifier
	Store         *store.Store
	Auth          *auth.Service
	Registrations *registration.Service
	Directory     *directory.Service
}

// Open connects the configured backend and builds every service on top of it.
// The administrator account is bootstrapped when a password is configured.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, notifier notify.Notifier) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogSink(logger)
	}

	backend, limiter, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st := store.New(backend)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.WarnContext(ctx, "no jwt secret configured, tokens will not survive a restart")
	}
	authSvc := auth.NewService(auth.NewRepository(st), secret).
		WithTokenTTL(cfg.Auth.TokenTTL).
		WithBcryptCost(cfg.Auth.BcryptCost).
		WithLimiter(limiter).
		WithLogger(logger)

	policy := registration.PolicyTerminal
	if cfg.Registration.AllowRedecision {
		policy = registration.PolicyAllowRedecision
	}
	regs := registration.NewService(st, authSvc).
		WithPolicy(policy).
		WithLogger(logger)

	records, err := loadSeed(cfg.Directory.SeedFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	repo, err := directory.NewSeedRepository(records)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		Notifier:      notifier,
		Store:         st,
		Auth:          authSvc,
		Registrations: regs,
		Directory:     directory.NewService(repo, cfg.Directory.CacheTTL),
	}

	if err := a.bootstrapAdmin(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// NewSession returns a session bound to sessionID. The empty id is the single
// local session used by the CLI.
func (a *App) NewSession(sessionID string) *session.Session {
	return session.New(a.Store, a.Registrations, a.Notifier).
		WithID(sessionID).
		WithLogger(a.Logger)
}

func (a *App) Close() error {
	return a.Store.Close()
}

func (a *App) bootstrapAdmin(ctx context.Context) error {
	if a.Config.Auth.AdminPassword == "" {
		a.Logger.DebugContext(ctx, "admin password not configured, skipping admin bootstrap")
		return nil
	}
	_, err := a.Auth.EnsureAdmin(ctx, auth.AdminAccount{
		Name:     a.Config.Auth.AdminName,
		Email:    a.Config.Auth.AdminEmail,
		Password: a.Config.Auth.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("app: bootstrap admin: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (kv.Store, auth.Limiter, error) {
	memoryLimiter := auth.NewMemoryLimiter(cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow)

	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		return kv.NewMemory(), memoryLimiter, nil

	case config.DriverSQLite:
		backend, err := kv.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.DebugContext(ctx, "using sqlite store", "path", cfg.Store.SQLitePath)
		return backend, memoryLimiter, nil

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL,
			db.WithMaxConns(cfg.Store.MaxConns),
			db.WithConnectTimeout(cfg.Store.DialTimeout),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.DebugContext(ctx, "using postgres store")
		return kv.NewPostgres(pool), memoryLimiter, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: redis ping: %w", err)
		}
		logger.DebugContext(ctx, "using redis store", "addr", cfg.Store.RedisAddr)
		return kv.NewRedis(client, cfg.Store.KeyPrefix),
			auth.NewRedisLimiter(client, cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow), nil

	default:
		return nil, nil, errors.New("app: unknown store driver " + cfg.Store.Driver)
	}
}

func loadSeed(path string) ([]directory.Record, error) {
	if path == "" {
		return directory.DefaultSeed()
	}
	return directory.LoadSeed(path)
}
