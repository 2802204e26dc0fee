// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/passgate/passgate/internal/store"
)

var _ = Describe("Migrator and Connect", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("passgate_test"),
			postgres.WithUsername("passgate"),
			postgres.WithPassword("passgate"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("migrates up, reports status and migrates down", func() {
		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = m.Close() })

		st, err := m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Pending).To(ContainElement(uint(1)))

		Expect(m.Up()).To(Succeed())
		Expect(m.Up()).To(Succeed(), "second up is a no-op")

		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())

		pool, err := store.Connect(ctx, connStr, store.DefaultConnectOptions)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var count int
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)).To(Succeed())
		Expect(count).To(BeZero())

		Expect(m.Down()).To(Succeed())
		err = pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)
		Expect(err).To(HaveOccurred())
	})
})
