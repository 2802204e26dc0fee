// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth/memory"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/store"
)

type memoryStore struct {
	*memory.AccountStore
}

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close()                     {}

type postgresStore struct {
	*postgres.AccountStore
	pool *pgxpool.Pool
}

func (s postgresStore) Close() { s.pool.Close() }

// openAccountStore opens the store selected by driver.
func openAccountStore(ctx context.Context, driver, databaseURL string) (AccountStore, error) {
	switch driver {
	case config.DriverMemory:
		return memoryStore{memory.NewAccountStore()}, nil
	case config.DriverPostgres:
		opts := store.DefaultConnectOptions
		opts.Logger = slog.Default()
		pool, err := store.Connect(ctx, databaseURL, opts)
		if err != nil {
			return nil, err //nolint:wrapcheck // Connect errors carry codes
		}
		return postgresStore{AccountStore: postgres.NewAccountStore(pool), pool: pool}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", driver).Errorf("unknown store driver %q", driver)
	}
}
