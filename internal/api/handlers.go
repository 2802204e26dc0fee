// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/observability"
)

// maxBodyBytes caps signup and login request bodies.
const maxBodyBytes = 64 << 10

// Auth operation names used as metric labels.
const (
	opSignup        = "signup"
	opLogin         = "login"
	opReadProfile   = "read_profile"
	opDeleteAccount = "delete_account"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.metrics.ObserveAuth(opSignup, observability.ResultFailure)
		writeValidation(w, validationIssue{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"})
		return
	}

	if err := s.svc.Signup(r.Context(), req); err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			s.metrics.ObserveAuth(opSignup, observability.ResultFailure)
			writeValidation(w, invalidInputIssue(err, req))
			return
		}
		s.writeServiceError(w, r, opSignup, err)
		return
	}

	s.metrics.ObserveAuth(opSignup, observability.ResultSuccess)
	writeJSON(w, http.StatusOK, messageResponse{Message: "User created successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.metrics.ObserveAuth(opLogin, observability.ResultFailure)
		writeValidation(w, validationIssue{Loc: []string{"body"}, Msg: "invalid form body", Type: "value_error"})
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	var issues []validationIssue
	if username == "" {
		issues = append(issues, missingField("body", "username"))
	}
	if password == "" {
		issues = append(issues, missingField("body", "password"))
	}
	if len(issues) > 0 {
		s.metrics.ObserveAuth(opLogin, observability.ResultFailure)
		writeValidation(w, issues...)
		return
	}

	grant, err := s.svc.Login(r.Context(), username, password)
	if err != nil {
		s.writeServiceError(w, r, opLogin, err)
		return
	}

	s.metrics.ObserveAuth(opLogin, observability.ResultSuccess)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.metrics.ObserveAuth(opReadProfile, observability.ResultFailure)
		writeUnauthorized(w, detailNotAuthenticated)
		return
	}

	profile, err := s.svc.ReadProfile(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, opReadProfile, err)
		return
	}

	s.metrics.ObserveAuth(opReadProfile, observability.ResultSuccess)
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.metrics.ObserveAuth(opDeleteAccount, observability.ResultFailure)
		writeUnauthorized(w, detailNotAuthenticated)
		return
	}

	username, err := s.svc.DeleteAccount(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, opDeleteAccount, err)
		return
	}

	s.metrics.ObserveAuth(opDeleteAccount, observability.ResultSuccess)
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("User '%s' deleted successfully", username),
	})
}

// bearerToken extracts the credentials of an "Authorization: Bearer"
// header. The scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
