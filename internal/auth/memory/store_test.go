// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
	"github.com/passgate/passgate/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAccount(username, email string) *auth.Account {
	return &auth.Account{
		ID:           ulid.Make(),
		Username:     username,
		FirstName:    "First",
		LastName:     "Last",
		Email:        email,
		PasswordHash: "$argon2id$hash",
	}
}

func TestAccountStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()

	acct := newAccount("alice", "alice@example.com")
	require.NoError(t, store.Put(ctx, acct))

	ok, err := store.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	t.Run("returned accounts are copies", func(t *testing.T) {
		got.FirstName = "Mutated"
		again, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "First", again.FirstName)

		acct.LastName = "Mutated"
		again, err = store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Last", again.LastName)
	})

	t.Run("usernames are case sensitive", func(t *testing.T) {
		ok, err := store.Exists(ctx, "Alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAccountStore_FindByEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	require.NoError(t, store.Put(ctx, newAccount("alice", "Alice@Example.com")))

	got, err := store.FindByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice@Example.com", got.Email)

	_, err = store.FindByEmail(ctx, "bob@example.com")
	errutil.AssertErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountStore_Conflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	require.NoError(t, store.Put(ctx, newAccount("alice", "alice@example.com")))

	t.Run("duplicate username", func(t *testing.T) {
		err := store.Put(ctx, newAccount("alice", "other@example.com"))
		require.Error(t, err)
		errutil.AssertErrorKind(t, err, auth.ErrConflict, auth.CodeUsernameTaken)
	})

	t.Run("duplicate email differing in case", func(t *testing.T) {
		err := store.Put(ctx, newAccount("bob", "ALICE@example.com"))
		require.Error(t, err)
		errutil.AssertErrorKind(t, err, auth.ErrConflict, auth.CodeEmailTaken)
	})

	t.Run("username checked first", func(t *testing.T) {
		err := store.Put(ctx, newAccount("alice", "alice@example.com"))
		errutil.AssertErrorCode(t, err, auth.CodeUsernameTaken)
	})

	assert.Equal(t, 1, store.Len())
}

func TestAccountStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	require.NoError(t, store.Put(ctx, newAccount("alice", "alice@example.com")))

	require.NoError(t, store.Delete(ctx, "alice"))

	_, err := store.Get(ctx, "alice")
	errutil.AssertErrorIs(t, err, auth.ErrNotFound)

	err = store.Delete(ctx, "alice")
	errutil.AssertErrorIs(t, err, auth.ErrNotFound)

	// Email is released with the account.
	require.NoError(t, store.Put(ctx, newAccount("alice2", "alice@example.com")))
}

func TestAccountStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := memory.NewAccountStore()

	_, err := store.Exists(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, newAccount("alice", "a@example.com")), context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestAccountStore_ConcurrentPutSameUsername(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Put(ctx, newAccount("alice", fmt.Sprintf("alice%d@example.com", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, auth.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, store.Len())
}

func TestAccountStore_ConcurrentPutSameEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()

	const workers = 32
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Put(ctx, newAccount(fmt.Sprintf("user%d", i), "shared@example.com"))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	}
	assert.Equal(t, 1, succeeded)
}
