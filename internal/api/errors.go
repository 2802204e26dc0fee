// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/pkg/errutil"
)

// Response details.
const (
	detailUsernameTaken      = "Username already registered"
	detailEmailTaken         = "Email already registered"
	detailInvalidCredentials = "Incorrect username or password"
	detailInvalidToken       = "Could not validate credentials"
	detailNotAuthenticated   = "Not authenticated"
	detailUserNotFound       = "User not found"
	detailInternal           = "Internal server error"
)

type detailResponse struct {
	Detail any `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// validationIssue is one entry of a 422 detail list.
type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeValidation(w http.ResponseWriter, issues ...validationIssue) {
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: issues})
}

func missingField(loc, field string) validationIssue {
	return validationIssue{Loc: []string{loc, field}, Msg: "field required", Type: "value_error.missing"}
}

// invalidInputIssue describes a validation error returned by the service.
func invalidInputIssue(err error, req auth.SignupRequest) validationIssue {
	field := "body"
	if oopsErr, ok := oops.AsOops(err); ok {
		if f, ok := oopsErr.Context()["field"].(string); ok {
			field = f
		}
	}
	if field == "email" && req.Email != "" {
		return validationIssue{Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error.email"}
	}
	return missingField("body", field)
}

// writeServiceError maps a service error to its response and records the
// outcome of operation.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	result := observability.ResultFailure
	defer func() { s.metrics.ObserveAuth(operation, result) }()

	switch {
	case errors.Is(err, auth.ErrConflict):
		detail := detailUsernameTaken
		if errutil.Code(err) == auth.CodeEmailTaken {
			detail = detailEmailTaken
		}
		writeDetail(w, http.StatusBadRequest, detail)
	case errors.Is(err, auth.ErrUnauthorized):
		detail := detailInvalidToken
		if errutil.Code(err) == auth.CodeInvalidCredentials {
			detail = detailInvalidCredentials
		}
		writeUnauthorized(w, detail)
	case errors.Is(err, auth.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailUserNotFound)
	default:
		result = observability.ResultError
		errutil.LogErrorContext(r.Context(), s.logger.With("request_id", RequestID(r.Context())),
			operation+" failed", err)
		writeDetail(w, http.StatusInternalServerError, detailInternal)
	}
}
