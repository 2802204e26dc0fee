// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package errutil

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertErrorIs asserts that err wraps the sentinel kind. On failure the
// message names the error's code, which is usually what went wrong.
func AssertErrorIs(t *testing.T, err, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %q in chain, got %q (code %q)", kind, err, Code(err))
}

// AssertErrorKind asserts both the sentinel kind and the precise code.
func AssertErrorKind(t *testing.T, err, kind error, code string) {
	t.Helper()
	AssertErrorIs(t, err, kind)
	AssertErrorCode(t, err, code)
}
