// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package postgres provides a PostgreSQL-backed AccountStore.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Constraint names from the accounts migration.
const (
	constraintUsername = "accounts_pkey"
	constraintEmail    = "accounts_email_key"
)

// poolIface is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// AccountStore implements auth.AccountStore using PostgreSQL. Uniqueness of
// username and email is enforced by the table's constraints, so concurrent
// inserts are resolved by the database.
type AccountStore struct {
	pool poolIface
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool poolIface) *AccountStore {
	return &AccountStore{pool: pool}
}

const selectAccount = `
	SELECT id, username, first_name, last_name, email, password_hash, created_at
	FROM accounts`

// Exists reports whether an account with username is stored.
func (s *AccountStore) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account exists").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// Get retrieves an account by username (case-sensitive).
func (s *AccountStore) Get(ctx context.Context, username string) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+` WHERE username = $1`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// FindByEmail retrieves an account by email (case-insensitive).
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+` WHERE LOWER(email) = LOWER($1)`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// Put inserts a new account. A unique violation is reported as
// auth.ErrConflict with the code of the violated constraint.
func (s *AccountStore) Put(ctx context.Context, account *auth.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, username, first_name, last_name, email, password_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.Username,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if kind, ok := conflictKind(pgErr.ConstraintName); ok {
				return oops.Code(auth.ConflictCode(kind)).
					With("username", account.Username).
					With("constraint", pgErr.ConstraintName).
					Wrapf(auth.ErrConflict, "%s already registered", kind)
			}
		}
		return oops.Code("ACCOUNT_PUT_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// Delete removes an account by username.
func (s *AccountStore) Delete(ctx context.Context, username string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity.
func (s *AccountStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("ACCOUNT_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func conflictKind(constraint string) (auth.ConflictKind, bool) {
	switch constraint {
	case constraintUsername:
		return auth.ConflictUsername, true
	case constraintEmail:
		return auth.ConflictEmail, true
	default:
		return "", false
	}
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account auth.Account
		idStr   string
	)
	if err := row.Scan(
		&idStr,
		&account.Username,
		&account.FirstName,
		&account.LastName,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	account.ID = id
	return &account, nil
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountStore)(nil)
