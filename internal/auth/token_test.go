// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/pkg/errutil"
)

var testSecret = []byte("test-signing-secret-0123456789abcdef")

// fixedClock returns a settable clock. Times are whole seconds because
// token timestamps have second precision.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestIssuer(t *testing.T, clock *fixedClock, opts ...auth.JWTOption) *auth.JWTIssuer {
	t.Helper()
	opts = append([]auth.JWTOption{auth.WithTokenClock(clock.Now)}, opts...)
	issuer, err := auth.NewJWTIssuer(testSecret, opts...)
	require.NoError(t, err)
	return issuer
}

func TestNewJWTIssuer_RequiresSecret(t *testing.T) {
	issuer, err := auth.NewJWTIssuer(nil)
	require.Error(t, err)
	assert.Nil(t, issuer)
	errutil.AssertErrorKind(t, err, auth.ErrMissingSigningKey, "TOKEN_MISSING_SECRET")
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	clock := newClock()
	issuer := newTestIssuer(t, clock)

	tok, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.Subject)
	assert.NotEmpty(t, tok.ID)
	assert.Equal(t, clock.t, tok.IssuedAt)
	assert.Equal(t, clock.t.Add(time.Hour), tok.ExpiresAt)
	assert.Len(t, strings.Split(tok.Value, "."), 3)

	claims, err := issuer.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, tok.ID, claims.ID)
	assert.True(t, tok.ExpiresAt.Equal(claims.ExpiresAt))
}

func TestJWTIssuer_Issue(t *testing.T) {
	clock := newClock()
	issuer := newTestIssuer(t, clock)

	t.Run("non-positive ttl uses default", func(t *testing.T) {
		tok, err := issuer.Issue("alice", 0)
		require.NoError(t, err)
		assert.Equal(t, clock.t.Add(auth.DefaultTokenTTL), tok.ExpiresAt)
	})

	t.Run("empty subject is rejected", func(t *testing.T) {
		_, err := issuer.Issue("", time.Hour)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_SUBJECT")
	})

	t.Run("tokens are distinct", func(t *testing.T) {
		a, err := issuer.Issue("alice", time.Hour)
		require.NoError(t, err)
		b, err := issuer.Issue("alice", time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
		assert.NotEqual(t, a.Value, b.Value)
	})
}

func TestJWTIssuer_Expiry(t *testing.T) {
	clock := newClock()
	issuer := newTestIssuer(t, clock)
	issuedAt := clock.t
	ttl := 2 * time.Hour

	tok, err := issuer.Issue("alice", ttl)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		clock.t = issuedAt.Add(ttl - time.Second)
		_, err := issuer.Verify(tok.Value)
		require.NoError(t, err)
	})

	t.Run("expired just after expiry", func(t *testing.T) {
		clock.t = issuedAt.Add(ttl + time.Second)
		_, err := issuer.Verify(tok.Value)
		require.Error(t, err)
		errutil.AssertErrorIs(t, err, auth.ErrTokenExpired)
		assert.NotErrorIs(t, err, auth.ErrTokenInvalid)
		errutil.AssertErrorCode(t, err, "TOKEN_EXPIRED")
	})
}

func TestJWTIssuer_VerifyRejects(t *testing.T) {
	clock := newClock()
	issuer := newTestIssuer(t, clock)

	tok, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)

	otherKey, err := auth.NewJWTIssuer([]byte("a-different-secret"), auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	foreign, err := otherKey.Issue("alice", time.Hour)
	require.NoError(t, err)

	otherIss := newTestIssuer(t, clock, auth.WithIssuer("someone-else"))
	wrongIssuer, err := otherIss.Issue("alice", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    auth.DefaultTokenIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    auth.DefaultTokenIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  auth.DefaultTokenIssuer,
		Subject: "alice",
	}).SignedString(testSecret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    auth.DefaultTokenIssuer,
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered signature", tampered},
		{"signed with other secret", foreign.Value},
		{"other issuer", wrongIssuer.Value},
		{"alg none", noneToken},
		{"unexpected algorithm", hs512},
		{"missing expiry", noExpiry},
		{"missing subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.Verify(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, auth.ErrTokenInvalid), "expected ErrTokenInvalid, got %v", err)
			errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
		})
	}
}

func TestJWTIssuer_ExpiredForeignTokenIsInvalid(t *testing.T) {
	clock := newClock()
	other, err := auth.NewJWTIssuer([]byte("a-different-secret"), auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Issue("alice", time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour)
	issuer := newTestIssuer(t, clock)

	_, err = issuer.Verify(foreign.Value)
	require.Error(t, err)
	errutil.AssertErrorIs(t, err, auth.ErrTokenInvalid)
	assert.NotErrorIs(t, err, auth.ErrTokenExpired)
}
