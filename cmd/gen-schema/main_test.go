// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/config"
)

func TestRun_WritesAndChecks(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "config.schema.json")

	require.Error(t, run(out, true), "check must fail before the file exists")
	require.NoError(t, run(out, false))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), config.SchemaID)

	require.NoError(t, run(out, true))

	require.NoError(t, os.WriteFile(out, []byte("{}\n"), 0o600))
	assert.Error(t, run(out, true))
}
