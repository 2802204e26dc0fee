// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package auth provides the credential and token authority for Passgate.
//
// # Components
//
//   - AccountStore - persists accounts keyed by username with a unique email index
//   - PasswordHasher - salted one-way hashing (Argon2idHasher)
//   - TokenIssuer - signs and verifies bearer tokens (JWTIssuer)
//   - Service - signup, login, authenticate, profile read and account deletion
//
// Store implementations live in the memory and postgres subpackages.
//
// # Errors
//
// Operations return oops errors that carry a code and wrap one of the kind
// sentinels (ErrConflict, ErrUnauthorized, ErrNotFound, ErrInvalidInput).
// Callers branch on the kind with errors.Is and read the code for detail.
// Login returns the same error for an unknown username and a wrong password.
package auth
