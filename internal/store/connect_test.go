// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func quietOpts(attempts uint64) ConnectOptions {
	return ConnectOptions{
		Attempts: attempts,
		Backoff:  time.Millisecond,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func TestWaitForDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPinger{failures: 2}
		require.NoError(t, waitForDatabase(ctx, p, quietOpts(5)))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		p := &flakyPinger{failures: 100}
		err := waitForDatabase(ctx, p, quietOpts(3))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 3, p.calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		p := &flakyPinger{}
		require.NoError(t, waitForDatabase(ctx, p, quietOpts(0)))
		assert.Equal(t, 1, p.calls)
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p := &flakyPinger{failures: 100}
		err := waitForDatabase(cctx, p, ConnectOptions{Attempts: 50, Backoff: time.Hour, Logger: slog.New(slog.DiscardHandler)})
		require.Error(t, err)
	})
}

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", quietOpts(1))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
