// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Passgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passgate",
		Short: "Passgate - account signup and bearer token service",
		Long: `Passgate registers user accounts, verifies passwords and issues
signed, time-limited bearer tokens for protected account operations.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("passgate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
