// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/store"
)

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator from a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = newStoreMigrator
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply, roll back or inspect the embedded schema migrations.
The database is read from DATABASE_URL.`,
	}
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded into the environment if present")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
				}
				return printStatus(cmd, m)
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all account data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return oops.Code("MIGRATION_NOT_CONFIRMED").Errorf("refusing to drop the schema without --yes")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().Bool("yes", false, "confirm dropping the schema")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:     "status",
		Aliases: []string{"version"},
		Short:   "Show the schema version and pending migrations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use after
fixing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err //nolint:wrapcheck // Force errors carry codes
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	databaseURL, err := requireDatabaseURL(cmd)
	if err != nil {
		return err
	}

	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}

// requireDatabaseURL reads DATABASE_URL after loading the --env-file.
func requireDatabaseURL(cmd *cobra.Command) (string, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	secrets, err := config.LoadSecrets(envFile)
	if err != nil {
		return "", err //nolint:wrapcheck // already coded
	}
	if secrets.DatabaseURL == "" {
		return "", oops.Code("CONFIG_MISSING_DATABASE_URL").Errorf("DATABASE_URL is required")
	}
	return secrets.DatabaseURL, nil
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	cmd.Printf("Schema version: %d%s\n", st.Version, dirty)
	for _, v := range st.Applied {
		cmd.Printf("  applied  %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		cmd.Printf("  pending  %s\n", migrationLabel(v))
	}
	return nil
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(v), 10)
	}
	return name
}
