// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the validity window of access tokens when no ttl is given.
const DefaultTokenTTL = 90 * 24 * time.Hour

// DefaultTokenIssuer is the "iss" claim of issued tokens.
const DefaultTokenIssuer = "passgate"

// ErrMissingSigningKey is returned when a token issuer is built without a secret.
var ErrMissingSigningKey = oops.Code("TOKEN_MISSING_SECRET").Errorf("token signing secret is not configured")

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	Value     string
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenClaims are the verified contents of a bearer token.
type TokenClaims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies time-bounded bearer tokens.
type TokenIssuer interface {
	// Issue signs a token for subject valid for ttl. A non-positive ttl
	// selects DefaultTokenTTL.
	Issue(subject string, ttl time.Duration) (*IssuedToken, error)

	// Verify checks the token signature, then its expiry. Errors wrap
	// ErrTokenInvalid or ErrTokenExpired.
	Verify(token string) (*TokenClaims, error)
}

// JWTIssuer implements TokenIssuer with HS256 JSON Web Tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithIssuer sets the "iss" claim written to and required on tokens.
func WithIssuer(issuer string) JWTOption {
	return func(j *JWTIssuer) {
		j.issuer = issuer
	}
}

// WithTokenClock replaces the time source used for issuing and verifying.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(j *JWTIssuer) {
		j.now = now
	}
}

// NewJWTIssuer creates a JWTIssuer signing with secret. The secret is
// copied and never exposed.
func NewJWTIssuer(secret []byte, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSigningKey
	}
	j := &JWTIssuer{
		secret: append([]byte(nil), secret...),
		issuer: DefaultTokenIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Issue signs a token bound to subject.
func (j *JWTIssuer) Issue(subject string, ttl time.Duration) (*IssuedToken, error) {
	if subject == "" {
		return nil, oops.Code("TOKEN_INVALID_SUBJECT").Errorf("token subject cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := j.now()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))
	id := ulid.Make().String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    j.issuer,
		Subject:   subject,
		ID:        id,
		IssuedAt:  iat,
		ExpiresAt: exp,
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").With("subject", subject).Wrap(err)
	}

	return &IssuedToken{
		Value:     signed,
		Subject:   subject,
		ID:        id,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}

// Verify validates a token and returns its claims.
func (j *JWTIssuer) Verify(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrapf(ErrTokenInvalid, "token is empty")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		// The signature is checked before claims, so an expiry error
		// implies the token was correctly signed.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_EXPIRED").
				With("subject", claims.Subject).
				Wrapf(ErrTokenExpired, "token expired")
		}
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", err.Error()).
			Wrapf(ErrTokenInvalid, "token is invalid")
	}

	if claims.Subject == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrapf(ErrTokenInvalid, "token has no subject")
	}

	out := &TokenClaims{
		Subject: claims.Subject,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Compile-time interface check.
var _ TokenIssuer = (*JWTIssuer)(nil)
