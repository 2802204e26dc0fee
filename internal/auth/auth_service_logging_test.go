// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memory"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func findLog(entries []map[string]any, msg string) map[string]any {
	for _, e := range entries {
		if e["msg"] == msg {
			return e
		}
	}
	return nil
}

func TestService_LogsOutcomesWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	clock := newClock()
	svc, err := auth.NewService(memory.NewAccountStore(), newTestHasher(t), newTestIssuer(t, clock),
		auth.WithLogger(logger))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Signup(ctx, signup("alice", "A", "L", "alice@example.com", "hunter2")))
	grant, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	_, _ = svc.Login(ctx, "alice", "wrong-password")
	_, _ = svc.Authenticate(ctx, "garbage")

	raw := buf.String()
	assert.NotContains(t, raw, "hunter2")
	assert.NotContains(t, raw, "wrong-password")
	assert.NotContains(t, raw, grant.AccessToken)
	assert.NotContains(t, raw, "argon2id")

	entries := decodeLogLines(t, &buf)

	created := findLog(entries, "account created")
	require.NotNil(t, created, "expected account created log")
	assert.Equal(t, "alice", created["username"])
	assert.NotEmpty(t, created["account_id"])

	failed := findLog(entries, "login failed")
	require.NotNil(t, failed, "expected login failed log")
	assert.Equal(t, "INFO", failed["level"])

	rejected := findLog(entries, "token rejected")
	require.NotNil(t, rejected, "expected token rejected log")
	assert.Equal(t, "invalid", rejected["reason"])
}
