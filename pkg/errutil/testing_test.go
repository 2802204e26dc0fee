// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/passgate/passgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

var errKind = errors.New("kind")

func TestAssertErrorIs_WrappedSentinel(t *testing.T) {
	err := oops.Code("MY_CODE").Wrapf(errKind, "wrapped")
	errutil.AssertErrorIs(t, err, errKind)
}

func TestAssertErrorIs_PlainSentinel(t *testing.T) {
	errutil.AssertErrorIs(t, errKind, errKind)
}

func TestAssertErrorKind_KindAndCode(t *testing.T) {
	err := oops.Code("MY_CODE").With("user_id", "123").Wrapf(errKind, "wrapped")
	errutil.AssertErrorKind(t, err, errKind, "MY_CODE")
}
