// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/api"
	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/logging"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the account HTTP API and, unless disabled, the metrics and
health server. PASSGATE_SECRET_KEY must be set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps serves until ctx is cancelled, a shutdown signal
// arrives or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err //nolint:wrapcheck // config errors carry codes
	}
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // config errors carry codes
	}
	if err := cfg.RequireSecrets(); err != nil {
		return err //nolint:wrapcheck // config errors carry codes
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger := logging.SetDefault(logging.Options{
		Service: "passgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})

	logger.Info("starting passgate",
		"http_addr", cfg.HTTP.Addr,
		"store_driver", cfg.Store.Driver,
		"token_ttl", cfg.Token.TTL,
	)

	if cfg.Store.Driver == config.DriverPostgres && cfg.Store.AutoMigrate {
		if err := autoMigrate(deps, cfg.Secrets.DatabaseURL, logger); err != nil {
			return err
		}
	}

	accounts, err := deps.StoreFactory(ctx, cfg.Store.Driver, cfg.Secrets.DatabaseURL)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	defer accounts.Close()

	svc, err := buildService(cfg, accounts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var obsServer ObservabilityServer
	var metrics api.Recorder
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, accounts.Ping)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_START_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	apiServer, err := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
	)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	apiErrCh, err := apiServer.Start(cfg.HTTP.Addr)
	if err != nil {
		stopServers(cfg, logger, nil, obsServer)
		return oops.Code("SERVE_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	cmd.Println("Passgate started")
	logger.Info("passgate ready", "http_addr", apiServer.Addr())
	deps.OnReady(apiServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down...", "reason", context.Cause(ctx))

	stopServers(cfg, logger, apiServer, obsServer)
	logger.Info("shutdown complete")

	var serverErr *serverError
	if errors.As(context.Cause(ctx), &serverErr) {
		return oops.Code("SERVE_FAILED").With("server", serverErr.server).Wrap(serverErr.err)
	}
	return nil
}

func buildService(cfg *config.Config, accounts auth.AccountStore, logger *slog.Logger) (*auth.Service, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	issuer, err := auth.NewJWTIssuer([]byte(cfg.Secrets.SigningKey), auth.WithIssuer(cfg.Token.Issuer))
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	return auth.NewService(accounts, hasher, issuer, //nolint:wrapcheck // already coded
		auth.WithLogger(logger),
		auth.WithTokenTTL(cfg.Token.TTL),
	)
}

func autoMigrate(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	st, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database schema up to date", "version", st.Version)
	return nil
}

func stopServers(cfg *config.Config, logger *slog.Logger, apiServer *api.Server, obsServer ObservabilityServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	if apiServer != nil {
		wg.Go(func() {
			if err := apiServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping api server", "error", err)
			}
		})
	}
	if obsServer != nil {
		wg.Go(func() {
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		})
	}
	wg.Wait()
}

type serverError struct {
	server string
	err    error
}

func (e *serverError) Error() string { return e.server + ": " + e.err.Error() }
func (e *serverError) Unwrap() error { return e.err }

// monitorServerErrors cancels ctx with the first error a server reports.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
		cancel(&serverError{server: serverName, err: err})
	case <-ctx.Done():
	}
}
