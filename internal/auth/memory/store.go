// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package memory provides an in-process AccountStore for tests and
// single-instance deployments.
package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// AccountStore keeps accounts in maps guarded by a single lock. Returned
// accounts are copies.
type AccountStore struct {
	mu         sync.RWMutex
	byUsername map[string]*auth.Account
	byEmail    map[string]string // normalized email -> username
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byUsername: make(map[string]*auth.Account),
		byEmail:    make(map[string]string),
	}
}

// Exists reports whether username is stored.
func (s *AccountStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").Wrap(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[username]
	return ok, nil
}

// Get returns a copy of the account for username.
func (s *AccountStore) Get(ctx context.Context, username string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").Wrap(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byUsername[username]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// FindByEmail returns a copy of the account owning email.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").Wrap(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	cp := *s.byUsername[username]
	return &cp, nil
}

// Put stores a new account. Both uniqueness checks and the insert happen
// under the write lock.
func (s *AccountStore) Put(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_PUT_FAILED").Wrap(err)
	}
	if account == nil || account.Username == "" {
		return oops.Code("ACCOUNT_PUT_FAILED").Errorf("account must have a username")
	}

	email := auth.NormalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[account.Username]; ok {
		return oops.Code(auth.ConflictCode(auth.ConflictUsername)).
			With("username", account.Username).
			Wrapf(auth.ErrConflict, "username already registered")
	}
	if _, ok := s.byEmail[email]; ok {
		return oops.Code(auth.ConflictCode(auth.ConflictEmail)).
			With("username", account.Username).
			Wrapf(auth.ErrConflict, "email already registered")
	}

	cp := *account
	s.byUsername[cp.Username] = &cp
	s.byEmail[email] = cp.Username
	return nil
}

// Delete removes the account for username.
func (s *AccountStore) Delete(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byUsername[username]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	delete(s.byEmail, auth.NormalizeEmail(a.Email))
	delete(s.byUsername, username)
	return nil
}

// Len returns the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsername)
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountStore)(nil)
