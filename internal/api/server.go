// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package api exposes the auth service over HTTP.
//
// Routes:
//
//	POST   /auth/signup          JSON account fields
//	POST   /auth/login           form username, password
//	GET    /auth/users/me        bearer token
//	DELETE /auth/delete_account  bearer token
//
// Error responses have the shape {"detail": ...}.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/passgate/passgate/internal/auth"
)

// AuthService is the subset of auth.Service served over HTTP.
type AuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest) error
	Login(ctx context.Context, username, password string) (*auth.TokenGrant, error)
	ReadProfile(ctx context.Context, token string) (auth.Profile, error)
	DeleteAccount(ctx context.Context, token string) (string, error)
}

// Recorder receives request and auth outcome metrics.
type Recorder interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	ObserveAuth(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (nopRecorder) ObserveAuth(string, string)                       {}

// Server serves the auth routes.
type Server struct {
	svc               AuthService
	logger            *slog.Logger
	metrics           Recorder
	readHeaderTimeout time.Duration

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Server) {
		s.metrics = r
	}
}

// WithReadHeaderTimeout bounds the time allowed to read request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// NewServer creates a Server for svc.
func NewServer(svc AuthService, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("API_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	s := &Server{
		svc:               svc,
		logger:            slog.Default(),
		metrics:           nopRecorder{},
		readHeaderTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("API_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, http.MethodPost, "/auth/signup", s.handleSignup)
	s.route(mux, http.MethodPost, "/auth/login", s.handleLogin)
	s.route(mux, http.MethodGet, "/auth/users/me", s.handleMe)
	s.route(mux, http.MethodDelete, "/auth/delete_account", s.handleDeleteAccount)

	var h http.Handler = mux
	h = s.recoverPanics(h)
	h = s.logRequests(h)
	h = withRequestID(h)
	return otelhttp.NewHandler(h, "passgate.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) route(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.Handle(method+" "+path, s.instrument(path, h))
}

// Start listens on addr and serves in the background. The returned channel
// receives any serve error and is closed when the server stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("API_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("API_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or "" if not started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
