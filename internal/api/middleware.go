// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package api

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/pkg/errutil"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID accepts a caller supplied id or generates one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// recoverPanics turns a handler panic into a logged API_PANIC and a 500.
// When the handler had already started its response, the status cannot
// change and the response is left as written.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := false
		tracked := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					started = true
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					started = true
					return next(b)
				}
			},
		})
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison as net/http does
				panic(rec)
			}
			err := oops.Code("API_PANIC").
				With("method", r.Method).
				With("path", r.URL.Path).
				Errorf("panic: %v", rec)
			errutil.LogErrorContext(r.Context(), s.logger.With("request_id", RequestID(r.Context())), "request panicked", err)
			if !started {
				writeDetail(w, http.StatusInternalServerError, detailInternal)
			}
		}()
		next.ServeHTTP(tracked, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.InfoContext(r.Context(), "request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}

// instrument records request metrics under a fixed route label.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.metrics.ObserveRequest(r.Method, route, m.Code, m.Duration)
	})
}
