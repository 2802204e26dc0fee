// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package config loads Passgate configuration from defaults, an optional
// YAML file, command-line flags and the environment.
package config

import (
	"time"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// ErrMissingSecret is returned when no token signing secret is configured.
// The server must not start without one.
var ErrMissingSecret = oops.Code("CONFIG_MISSING_SECRET").
	Errorf("PASSGATE_SECRET_KEY is not set")

// Config is the complete server configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty"`
	Store   StoreConfig   `koanf:"store" json:"store,omitempty"`
	Token   TokenConfig   `koanf:"token" json:"token,omitempty"`
	Hash    HashConfig    `koanf:"hash" json:"hash,omitempty"`

	// Secrets come only from the environment, never from the file or flags.
	Secrets Secrets `koanf:"-" json:"-"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" json:"addr,omitempty" jsonschema:"description=API listen address"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout,omitempty" jsonschema:"type=string,description=Go duration e.g. 10s"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"type=string,description=Go duration e.g. 5s"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=metrics and health listen address; empty disables"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects the account store backend.
type StoreConfig struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=memory,enum=postgres"`
	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=apply pending postgres migrations on startup"`
}

// TokenConfig configures bearer token issuance.
type TokenConfig struct {
	TTL    time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"type=string,description=Go duration e.g. 2160h"`
	Issuer string        `koanf:"issuer" json:"issuer,omitempty"`
}

// HashConfig holds argon2id cost parameters.
type HashConfig struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=1"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1,maximum=255"`
}

// Secrets are read from environment variables.
type Secrets struct {
	SigningKey  string `env:"PASSGATE_SECRET_KEY"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store:   StoreConfig{Driver: DriverMemory},
		Token: TokenConfig{
			TTL:    auth.DefaultTokenTTL,
			Issuer: auth.DefaultTokenIssuer,
		},
		Hash: HashConfig{
			Time:      auth.DefaultArgon2Params.Time,
			MemoryKiB: auth.DefaultArgon2Params.MemoryKiB,
			Threads:   auth.DefaultArgon2Params.Threads,
		},
	}
}

// Argon2Params converts the hash section to hasher parameters.
func (c *Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Time:      c.Hash.Time,
		MemoryKiB: c.Hash.MemoryKiB,
		Threads:   c.Hash.Threads,
	}
}

// Validate checks the non-secret settings.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout", "http.read_header_timeout must be positive")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return invalid("store.driver", "store.driver must be %q or %q, got %q", DriverMemory, DriverPostgres, c.Store.Driver)
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "token.ttl must be positive")
	}
	if c.Token.Issuer == "" {
		return invalid("token.issuer", "token.issuer is required")
	}
	if c.Hash.Time == 0 || c.Hash.MemoryKiB == 0 || c.Hash.Threads == 0 {
		return invalid("hash", "hash.time, hash.memory_kib and hash.threads must be positive")
	}
	return nil
}

// RequireSecrets checks the secrets needed to serve requests.
func (c *Config) RequireSecrets() error {
	if c.Secrets.SigningKey == "" {
		return ErrMissingSecret
	}
	if c.Store.Driver == DriverPostgres && c.Secrets.DatabaseURL == "" {
		return oops.Code("CONFIG_MISSING_DATABASE_URL").
			Errorf("DATABASE_URL is required when store.driver is %q", DriverPostgres)
	}
	return nil
}
