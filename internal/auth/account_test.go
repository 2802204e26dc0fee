// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/pkg/errutil"
)

func validSignup() auth.SignupRequest {
	return auth.SignupRequest{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice@example.com",
		Password:  "wonderland",
	}
}

func TestSignupRequest_Validate(t *testing.T) {
	t.Run("complete request is valid", func(t *testing.T) {
		require.NoError(t, validSignup().Validate())
	})

	missing := []struct {
		field string
		clear func(*auth.SignupRequest)
	}{
		{"username", func(r *auth.SignupRequest) { r.Username = "" }},
		{"first_name", func(r *auth.SignupRequest) { r.FirstName = "" }},
		{"last_name", func(r *auth.SignupRequest) { r.LastName = "" }},
		{"email", func(r *auth.SignupRequest) { r.Email = "" }},
		{"password", func(r *auth.SignupRequest) { r.Password = "" }},
	}
	for _, tt := range missing {
		t.Run("missing "+tt.field, func(t *testing.T) {
			req := validSignup()
			tt.clear(&req)
			err := req.Validate()
			require.Error(t, err)
			errutil.AssertErrorKind(t, err, auth.ErrInvalidInput, auth.CodeInvalidInput)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}

	for _, email := range []string{"not-an-email", "Alice <alice@example.com>", "alice@", "@example.com"} {
		t.Run("malformed email "+email, func(t *testing.T) {
			req := validSignup()
			req.Email = email
			err := req.Validate()
			require.Error(t, err)
			errutil.AssertErrorIs(t, err, auth.ErrInvalidInput)
			errutil.AssertErrorContext(t, err, "field", "email")
		})
	}
}

func TestAccount_ProfileOmitsSecrets(t *testing.T) {
	acct := &auth.Account{
		ID:           ulid.Make(),
		Username:     "alice",
		FirstName:    "Alice",
		LastName:     "Liddell",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$secret",
	}

	profile := acct.Profile()
	assert.Equal(t, auth.Profile{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice@example.com",
	}, profile)

	data, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice","first_name":"Alice","last_name":"Liddell","email":"alice@example.com"}`, string(data))

	data, err = json.Marshal(acct)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", auth.NormalizeEmail("  Alice@Example.COM "))
}

func TestConflictCode(t *testing.T) {
	assert.Equal(t, auth.CodeUsernameTaken, auth.ConflictCode(auth.ConflictUsername))
	assert.Equal(t, auth.CodeEmailTaken, auth.ConflictCode(auth.ConflictEmail))
}
