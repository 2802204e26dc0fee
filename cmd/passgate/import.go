// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/pkg/errutil"
)

// legacyUser is one record of an exported "users" node, keyed by username.
type legacyUser struct {
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportDeps contains injectable dependencies for the import command.
type ImportDeps struct {
	// StoreFactory opens the target store.
	// Default: openAccountStore
	StoreFactory func(ctx context.Context, driver, databaseURL string) (AccountStore, error)
}

// NewImportCmd creates the import subcommand.
func NewImportCmd() *cobra.Command {
	return newImportCmd(nil)
}

func newImportCmd(deps *ImportDeps) *cobra.Command {
	if deps == nil {
		deps = &ImportDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = openAccountStore
	}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import exported user records",
		Long: `Import a JSON export of user records keyed by username, each with
username, first_name, last_name, email and hashed_password. Existing
password hashes (bcrypt or argon2id) are kept as is. Records that conflict
with an existing username or email are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			databaseURL, err := requireDatabaseURL(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(path) //nolint:gosec // operator supplied path
			if err != nil {
				return oops.Code("IMPORT_FAILED").With("path", path).Wrap(err)
			}
			defer func() { _ = f.Close() }()

			accounts, err := deps.StoreFactory(cmd.Context(), config.DriverPostgres, databaseURL)
			if err != nil {
				return oops.Code("IMPORT_FAILED").With("operation", "open store").Wrap(err)
			}
			defer accounts.Close()

			res, err := importAccounts(cmd.Context(), f, accounts, slog.Default(), time.Now)
			if err != nil {
				return err
			}
			cmd.Printf("Imported %d accounts, skipped %d\n", res.Imported, res.Skipped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "JSON export to import")
	cmd.Flags().String("env-file", ".env", "dotenv file loaded into the environment if present")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// importAccounts stores each record of r in username order. Invalid and
// conflicting records are logged and skipped; any other store failure
// aborts the import.
func importAccounts(ctx context.Context, r io.Reader, accounts auth.AccountStore, logger *slog.Logger, now func() time.Time) (ImportResult, error) {
	var users map[string]legacyUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return ImportResult{}, oops.Code("IMPORT_INVALID_FILE").Wrap(err)
	}

	keys := make([]string, 0, len(users))
	for k := range users {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var res ImportResult
	for _, key := range keys {
		u := users[key]
		if u.Username == "" {
			u.Username = key
		}
		if reason := invalidRecord(key, u); reason != "" {
			logger.WarnContext(ctx, "skipping record", "key", key, "reason", reason)
			res.Skipped++
			continue
		}

		err := accounts.Put(ctx, &auth.Account{
			ID:           ulid.Make(),
			Username:     u.Username,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			PasswordHash: u.HashedPassword,
			CreatedAt:    now().UTC(),
		})
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, auth.ErrConflict):
			logger.WarnContext(ctx, "skipping record", "key", key, "reason", errutil.Code(err))
			res.Skipped++
		default:
			return res, oops.Code("IMPORT_FAILED").With("username", u.Username).Wrap(err)
		}
	}

	logger.InfoContext(ctx, "import finished", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// invalidRecord returns why a record cannot be imported, or "".
func invalidRecord(key string, u legacyUser) string {
	switch {
	case u.Username != key:
		return "username does not match key"
	case u.FirstName == "" || u.LastName == "" || u.Email == "":
		return "missing field"
	case !auth.SupportedHash(u.HashedPassword):
		return "unsupported password hash"
	}
	// Reuse signup validation for the email; the password field only
	// needs to be non-empty there.
	req := auth.SignupRequest{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Password:  u.HashedPassword,
	}
	if err := req.Validate(); err != nil {
		return "invalid email"
	}
	return ""
}
