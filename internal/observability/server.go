// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service can serve authenticated requests.
type ReadinessChecker func() bool

// Metrics contains the auth metrics exported on /metrics.
type Metrics struct {
	AuthChecks        *prometheus.CounterVec
	SessionsCreated   *prometheus.CounterVec
	SessionsDestroyed *prometheus.CounterVec
	UsersRegistered   prometheus.Counter
}

// NewMetrics creates and registers the auth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiauth_auth_checks_total",
				Help: "Total number of request authentication decisions by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		SessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiauth_sessions_created_total",
				Help: "Total number of sessions created by strategy",
			},
			[]string{"strategy"},
		),
		SessionsDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiauth_sessions_destroyed_total",
				Help: "Total number of sessions destroyed by strategy",
			},
			[]string{"strategy"},
		),
		UsersRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apiauth_users_registered_total",
				Help: "Total number of registered users",
			},
		),
	}

	reg.MustRegister(m.AuthChecks)
	reg.MustRegister(m.SessionsCreated)
	reg.MustRegister(m.SessionsDestroyed)
	reg.MustRegister(m.UsersRegistered)

	return m
}

// RecordAuthCheck counts one gate decision.
func (m *Metrics) RecordAuthCheck(strategy, result string) {
	m.AuthChecks.WithLabelValues(strategy, result).Inc()
}

// RecordSessionCreated counts one new session.
func (m *Metrics) RecordSessionCreated(strategy string) {
	m.SessionsCreated.WithLabelValues(strategy).Inc()
}

// RecordSessionDestroyed counts one destroyed session.
func (m *Metrics) RecordSessionDestroyed(strategy string) {
	m.SessionsDestroyed.WithLabelValues(strategy).Inc()
}

// RecordUserRegistered counts one registration.
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates an observability server on addr ("host:port") with its
// own registry holding Go, process and auth metrics.
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the auth metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints. The returned channel
// receives a serve failure, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 while the process is up.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 when ready and 503 otherwise.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
