// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
	"github.com/passgate/passgate/internal/auth/postgres"
)

func newAccount(username, email string) *auth.Account {
	return &auth.Account{
		ID:           ulid.Make(),
		Username:     username,
		FirstName:    "First",
		LastName:     "Last",
		Email:        email,
		PasswordHash: "$argon2id$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

var _ = Describe("AccountStore", func() {
	var (
		ctx   context.Context
		store *postgres.AccountStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = postgres.NewAccountStore(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores and reads back an account", func() {
		acct := newAccount("alice", "alice@example.com")
		Expect(store.Put(ctx, acct)).To(Succeed())

		exists, err := store.Exists(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		got, err := store.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(acct.ID))
		Expect(got.Email).To(Equal("alice@example.com"))
		Expect(got.PasswordHash).To(Equal(acct.PasswordHash))
		Expect(got.CreatedAt.Equal(acct.CreatedAt)).To(BeTrue())
	})

	It("treats usernames as case-sensitive", func() {
		Expect(store.Put(ctx, newAccount("alice", "alice@example.com"))).To(Succeed())
		Expect(store.Put(ctx, newAccount("Alice", "other@example.com"))).To(Succeed())

		_, err := store.Get(ctx, "ALICE")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("finds accounts by email ignoring case", func() {
		Expect(store.Put(ctx, newAccount("alice", "Alice@Example.com"))).To(Succeed())

		got, err := store.FindByEmail(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("alice"))
	})

	It("reports conflicts by constraint", func() {
		Expect(store.Put(ctx, newAccount("alice", "alice@example.com"))).To(Succeed())

		err := store.Put(ctx, newAccount("alice", "new@example.com"))
		Expect(err).To(MatchError(auth.ErrConflict))
		Expect(err.Error()).To(ContainSubstring("username"))

		err = store.Put(ctx, newAccount("bob", "ALICE@example.com"))
		Expect(err).To(MatchError(auth.ErrConflict))
		Expect(err.Error()).To(ContainSubstring("email"))
	})

	It("deletes accounts and frees the email", func() {
		Expect(store.Put(ctx, newAccount("alice", "alice@example.com"))).To(Succeed())
		Expect(store.Delete(ctx, "alice")).To(Succeed())
		Expect(store.Delete(ctx, "alice")).To(MatchError(auth.ErrNotFound))
		Expect(store.Put(ctx, newAccount("carol", "alice@example.com"))).To(Succeed())
	})

	It("lets exactly one of many concurrent signups win", func() {
		const workers = 16
		errs := make(chan error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				errs <- store.Put(ctx, newAccount(fmt.Sprintf("user%d", i), "race@example.com"))
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			if err == nil {
				wins++
				continue
			}
			Expect(err).To(MatchError(auth.ErrConflict))
		}
		Expect(wins).To(Equal(1))
	})

	It("pings the database", func() {
		Expect(store.Ping(ctx)).To(Succeed())
	})

	It("behaves like the memory store for the service flow", func() {
		for _, s := range []auth.AccountStore{store, memory.NewAccountStore()} {
			Expect(s.Put(ctx, newAccount("dave", "dave@example.com"))).To(Succeed())
			_, err := s.FindByEmail(ctx, "DAVE@example.com")
			Expect(err).NotTo(HaveOccurred())
		}
	})
})
