// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a registered user account.
type Account struct {
	ID           ulid.ULID
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// Profile is the public projection of an Account.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Profile projects the account to its public fields.
func (a *Account) Profile() Profile {
	return Profile{
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
	}
}

// NormalizeEmail returns the form of an email address used for uniqueness
// comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignupRequest carries the fields needed to create an account.
type SignupRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate checks that every field is present and that the email address
// is syntactically valid. Password strength is not checked.
func (r SignupRequest) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"username", r.Username},
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"email", r.Email},
		{"password", r.Password},
	}
	for _, f := range fields {
		if f.value == "" {
			return oops.Code(CodeInvalidInput).
				With("field", f.name).
				Wrapf(ErrInvalidInput, "%s is required", f.name)
		}
	}

	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return oops.Code(CodeInvalidInput).
			With("field", "email").
			Wrapf(ErrInvalidInput, "email is not a valid address")
	}
	return nil
}

// AccountStore persists accounts keyed by username.
//
// Put must check username and email uniqueness atomically: of two
// concurrent Puts sharing either value, exactly one succeeds and the other
// returns an error wrapping ErrConflict.
type AccountStore interface {
	// Exists reports whether an account with the username is stored.
	Exists(ctx context.Context, username string) (bool, error)

	// Get returns the account for a username, or an error wrapping ErrNotFound.
	Get(ctx context.Context, username string) (*Account, error)

	// FindByEmail returns the account owning an email address (compared
	// case-insensitively), or an error wrapping ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Put stores a new account. Returns an error wrapping ErrConflict with
	// code AUTH_USERNAME_TAKEN or AUTH_EMAIL_TAKEN on a uniqueness violation.
	Put(ctx context.Context, account *Account) error

	// Delete removes an account, or returns an error wrapping ErrNotFound.
	Delete(ctx context.Context, username string) error
}
