// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import "errors"

// Error kinds. Concrete errors are oops errors carrying a code and context
// that wrap one of these, so callers match the kind with errors.Is.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned for bad credentials and for invalid,
	// expired or orphaned tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput is returned when a request fails boundary validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenInvalid is returned by token verification for malformed or
	// tampered tokens.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired is returned by token verification for correctly
	// signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// ConflictKind names the uniqueness constraint a write violated.
type ConflictKind string

// Conflict kinds.
const (
	ConflictUsername ConflictKind = "username"
	ConflictEmail    ConflictKind = "email"
)

// Error codes shared by the service and store implementations.
const (
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeAccountGone        = "AUTH_ACCOUNT_GONE"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
)

// ConflictCode returns the error code for a violated constraint.
func ConflictCode(kind ConflictKind) string {
	if kind == ConflictEmail {
		return CodeEmailTaken
	}
	return CodeUsernameTaken
}
