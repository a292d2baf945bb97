// Package config loads process configuration from defaults, an optional
// config file, an optional .env file and LEGALPULSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"legalpulse/logging"
	"legalpulse/telemetry"
)

const (
	EnvPrefix = "LEGALPULSE"

	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Log          logging.Config     `mapstructure:"log"`
	Tracing      telemetry.Config   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
}

// StoreConfig selects the persistence backend. Driver is one of memory,
// sqlite, postgres or redis.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	DatabaseURL   string        `mapstructure:"database_url"`
	MaxConns      int32         `mapstructure:"max_conns"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
	AdminName     string        `mapstructure:"admin_name"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	AttemptWindow time.Duration `mapstructure:"attempt_window"`
}

type RegistrationConfig struct {
	AllowRedecision bool `mapstructure:"allow_redecision"`
}

type DirectoryConfig struct {
	SeedFile string        `mapstructure:"seed_file"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// IsDevelopment reports whether the server runs with development defaults.
func (c Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

// Validate rejects configurations the entrypoints cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.DatabaseURL == "" {
		return errors.New("config: store.database_url is required for the postgres driver")
	}
	if c.Store.Driver == DriverRedis && c.Store.RedisAddr == "" {
		return errors.New("config: store.redis_addr is required for the redis driver")
	}
	if c.Store.Driver == DriverSQLite && c.Store.SQLitePath == "" {
		return errors.New("config: store.sqlite_path is required for the sqlite driver")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	if c.Auth.AttemptWindow <= 0 || c.Auth.MaxAttempts <= 0 {
		return errors.New("config: auth.max_attempts and auth.attempt_window must be positive")
	}
	if c.Directory.CacheTTL < 0 {
		return errors.New("config: directory.cache_ttl must not be negative")
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateServer adds the checks that only apply to the network server.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("config: auth.jwt_secret is required outside development")
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	return nil
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.environment", "development")

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", filepath.Join(home, ".legalpulse", "state.db"))
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.dial_timeout", 10*time.Second)
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.key_prefix", "legalpulse:")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_email", "admin@legalpulse.in")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.admin_name", "LegalPulse Admin")
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.attempt_window", 15*time.Minute)

	v.SetDefault("registration.allow_redecision", false)

	v.SetDefault("directory.seed_file", "")
	v.SetDefault("directory.cache_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	tracing := telemetry.DefaultConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", tracing.SampleRate)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
}

// Load reads configuration into a Config. A nil v uses a fresh viper
// instance; callers with bound flags pass their own. An empty path searches
// for legalpulse.yaml in the working directory and ~/.legalpulse. Each of
// defaults runs after the built-in defaults so entrypoints can adjust them.
func Load(v *viper.Viper, path string, defaults ...func(*viper.Viper)) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	for _, fn := range defaults {
		fn(v)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("legalpulse")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".legalpulse"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	cfg.Log.Environment = cfg.Server.Environment
	return cfg, nil
}
