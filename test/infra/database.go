package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

const localConnectTimeout = 2 * time.Second

// createLocalDatabase creates a scratch database on the server named by the
// standard PGHOST, PGPORT, PGUSER and PGPASSWORD variables, falling back to a
// trust-authenticated postgres user on 127.0.0.1:5432. The returned func drops it.
func createLocalDatabase(ctx context.Context) (string, func(context.Context) error, error) {
	host := envOr("PGHOST", "127.0.0.1")
	port := envOr("PGPORT", "5432")

	var (
		conn  *pgx.Conn
		admin *url.URL
		errs  []error
	)
	for _, user := range localUsers() {
		u := &url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(host, port),
			Path:     "/postgres",
			RawQuery: "sslmode=disable",
		}
		if pw, ok := os.LookupEnv("PGPASSWORD"); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}

		cfg, err := pgx.ParseConfig(u.String())
		if err != nil {
			return "", nil, err
		}
		cfg.ConnectTimeout = localConnectTimeout
		c, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", user, err))
			continue
		}
		conn, admin = c, u
		break
	}
	if conn == nil {
		return "", nil, fmt.Errorf("connect to local server: %w", errors.Join(errs...))
	}
	defer conn.Close(ctx)

	name := fmt.Sprintf("legalpulse_test_%d", time.Now().UnixNano())
	ident := pgx.Identifier{name}.Sanitize()
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		return "", nil, fmt.Errorf("create database %s: %w", name, err)
	}

	scratch := *admin
	scratch.Path = "/" + name
	drop := func(ctx context.Context) error {
		c, err := pgx.Connect(ctx, admin.String())
		if err != nil {
			return err
		}
		defer c.Close(ctx)
		_, err = c.Exec(ctx, "DROP DATABASE IF EXISTS "+ident+" WITH (FORCE)")
		return err
	}
	return scratch.String(), drop, nil
}

func localUsers() []string {
	if user := os.Getenv("PGUSER"); user != "" {
		return []string{user}
	}
	users := []string{"postgres"}
	if user := os.Getenv("USER"); user != "" && user != "postgres" {
		users = append(users, user)
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
