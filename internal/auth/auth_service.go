// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("passgate/auth")

// TokenTypeBearer is the token type marker returned with access tokens.
const TokenTypeBearer = "bearer"

// TokenGrant is the result of a successful login.
type TokenGrant struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Service orchestrates the account lifecycle: signup, login, token
// authentication, profile reads and account deletion.
type Service struct {
	accounts AccountStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	logger   *slog.Logger
	tokenTTL time.Duration
	now      func() time.Time

	// dummyHash is verified against when a username does not exist so that
	// login costs the same whether or not the account is present. It is
	// produced by hasher, so it carries the configured cost parameters.
	dummyHash string
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger sets the logger used for operation outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenTTL sets the validity window of tokens issued at login.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithClock replaces the time source used for account timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. All three dependencies are required.
func NewService(accounts AccountStore, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token issuer is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		logger:   slog.Default(),
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}

	// The password is random and discarded, so the hash never matches.
	dummy, err := s.hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Signup creates a new account. Fails with ErrConflict when the username or
// the email is already registered, and with ErrInvalidInput when a field is
// missing or the email is malformed.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (err error) {
	ctx, span := tracer.Start(ctx, "auth.Signup",
		trace.WithAttributes(attribute.String("auth.username", req.Username)))
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return err //nolint:wrapcheck // already an oops error with code
	}

	exists, err := s.accounts.Exists(ctx, req.Username)
	if err != nil {
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "check username").
			With("username", req.Username).
			Wrap(err)
	}
	if exists {
		s.logger.InfoContext(ctx, "signup rejected", "username", req.Username, "reason", ConflictUsername)
		return oops.Code(CodeUsernameTaken).
			With("username", req.Username).
			Wrapf(ErrConflict, "username already registered")
	}

	_, err = s.accounts.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "signup rejected", "username", req.Username, "reason", ConflictEmail)
		return oops.Code(CodeEmailTaken).
			With("username", req.Username).
			Wrapf(ErrConflict, "email already registered")
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "check email").
			With("username", req.Username).
			Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account := &Account{
		ID:           ulid.Make(),
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	// The store re-checks both constraints atomically; a signup that lost
	// a race since the checks above surfaces the store's conflict error.
	if err := s.accounts.Put(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.InfoContext(ctx, "signup lost race", "username", req.Username)
			return err //nolint:wrapcheck // store conflict already carries the code
		}
		return oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "store account").
			With("username", req.Username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account created", "username", account.Username, "account_id", account.ID.String())
	return nil
}

// Login verifies credentials and issues a bearer token. An unknown username
// and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (grant *TokenGrant, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login",
		trace.WithAttributes(attribute.String("auth.username", username)))
	defer func() { endSpan(span, err) }()

	account, lookupErr := s.accounts.Get(ctx, username)

	var targetHash string
	accountExists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		accountExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = s.dummyHash
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown users, to keep timing uniform.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && accountExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("username", username).
			Wrap(verifyErr)
	}

	if !accountExists || !valid {
		s.logger.InfoContext(ctx, "login failed", "username", username)
		return nil, invalidCredentials()
	}

	token, err := s.tokens.Issue(account.Username, s.tokenTTL)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "username", account.Username, "token_id", token.ID)
	return &TokenGrant{
		AccessToken: token.Value,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrapf(ErrUnauthorized, "invalid username or password")
}

// Authenticate resolves a bearer token to its account. Invalid, expired and
// orphaned tokens all fail with ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (account *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	return s.authenticate(ctx, token)
}

func (s *Service) authenticate(ctx context.Context, token string) (*Account, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.logger.DebugContext(ctx, "token rejected", "reason", "expired")
			return nil, oops.Code(CodeTokenExpired).Wrapf(ErrUnauthorized, "could not validate credentials")
		}
		s.logger.DebugContext(ctx, "token rejected", "reason", "invalid")
		return nil, oops.Code(CodeInvalidToken).Wrapf(ErrUnauthorized, "could not validate credentials")
	}

	account, err := s.accounts.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "token subject has no account", "username", claims.Subject)
			return nil, oops.Code(CodeAccountGone).
				With("username", claims.Subject).
				Wrapf(ErrUnauthorized, "could not validate credentials")
		}
		return nil, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "get account").
			With("username", claims.Subject).
			Wrap(err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("auth.username", account.Username))
	return account, nil
}

// ReadProfile authenticates the token and returns the account's public fields.
func (s *Service) ReadProfile(ctx context.Context, token string) (profile Profile, err error) {
	ctx, span := tracer.Start(ctx, "auth.ReadProfile")
	defer func() { endSpan(span, err) }()

	account, err := s.authenticate(ctx, token)
	if err != nil {
		return Profile{}, err
	}
	return account.Profile(), nil
}

// DeleteAccount authenticates the token and removes its account. Returns the
// deleted username. Fails with ErrNotFound if the account disappeared
// between authentication and deletion.
func (s *Service) DeleteAccount(ctx context.Context, token string) (username string, err error) {
	ctx, span := tracer.Start(ctx, "auth.DeleteAccount")
	defer func() { endSpan(span, err) }()

	account, err := s.authenticate(ctx, token)
	if err != nil {
		return "", err
	}

	if err := s.accounts.Delete(ctx, account.Username); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeAccountNotFound).
				With("username", account.Username).
				Wrapf(ErrNotFound, "user not found")
		}
		return "", oops.Code("AUTH_DELETE_FAILED").
			With("operation", "delete account").
			With("username", account.Username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account deleted", "username", account.Username)
	return account.Username, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
