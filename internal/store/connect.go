// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package store manages the PostgreSQL connection and schema for Passgate.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how Connect waits for the database.
type ConnectOptions struct {
	// Attempts is the number of pings tried before giving up.
	Attempts uint64
	// Backoff is the initial delay between pings; it doubles each attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

// DefaultConnectOptions retries for roughly half a minute.
var DefaultConnectOptions = ConnectOptions{
	Attempts: 6,
	Backoff:  500 * time.Millisecond,
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for dsn and pings it until the database answers or
// the attempts run out.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("database", cfg.ConnConfig.Database).
			Wrap(err)
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, opts ConnectOptions) error {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectOptions.Backoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// WithMaxRetries counts retries after the first try.
	backoff := retry.WithMaxRetries(opts.Attempts-1, retry.NewExponential(opts.Backoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck // wrapped by caller
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
