// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/internal/store"
)

// AccountStore is an auth.AccountStore with its lifecycle hooks.
type AccountStore interface {
	auth.AccountStore

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the account store for a driver.
	// Default: openAccountStore
	StoreFactory func(ctx context.Context, driver, databaseURL string) (AccountStore, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// OnReady is called with the API listen address once serving.
	OnReady func(apiAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.StoreFactory == nil {
		out.StoreFactory = openAccountStore
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newStoreMigrator
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}

func newStoreMigrator(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}
