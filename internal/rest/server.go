// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-moneta/pkg/health"
	"github.com/jeremyhahn/go-moneta/pkg/metrics"
	passkeyhttp "github.com/jeremyhahn/go-moneta/pkg/passkey/http"
	"github.com/jeremyhahn/go-moneta/pkg/ratelimit"
	"github.com/jeremyhahn/go-moneta/pkg/session"
)

// Server represents the REST API server.
type Server struct {
	server      *http.Server
	passkeys    *passkeyhttp.Handler
	issuer      *session.Issuer
	health      *health.Checker
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	addr        string
	tlsCertFile string
	tlsKeyFile  string
	corsOrigins []string
	metricsPath string
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the address to bind to (default: all interfaces)
	Host string

	// Port is the HTTP port to listen on (default: 8443)
	Port int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set
	TLSCertFile string
	TLSKeyFile  string

	// CORSOrigins is the list of origins allowed to call the API. These
	// should match the passkey relying party origins.
	CORSOrigins []string

	// MetricsEnabled exposes Prometheus metrics when true
	MetricsEnabled bool

	// MetricsPath is where metrics are served (default: /metrics)
	MetricsPath string

	// Passkeys handles the passkey ceremony endpoints
	Passkeys *passkeyhttp.Handler

	// Issuer validates session tokens for authenticated endpoints
	Issuer *session.Issuer

	// Health reports liveness and readiness (optional)
	Health *health.Checker

	// RateLimit throttles the passkey ceremony endpoints per client
	// IP (optional)
	RateLimit *ratelimit.Limiter

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey handler is required")
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("session issuer is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		passkeys:    cfg.Passkeys,
		issuer:      cfg.Issuer,
		health:      cfg.Health,
		limiter:     cfg.RateLimit,
		logger:      logger,
		addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		tlsCertFile: cfg.TLSCertFile,
		tlsKeyFile:  cfg.TLSKeyFile,
		corsOrigins: cfg.CORSOrigins,
	}
	if cfg.MetricsEnabled {
		server.metricsPath = cfg.MetricsPath
	}

	router := server.setupRouter()

	server.server = &http.Server{
		Addr:         server.addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(s.CORSMiddleware())

	r.Get("/health", s.HealthHandler)
	r.Head("/health", s.HealthHandler)
	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	// Credential-management handlers act on the session principal
	s.passkeys.WithPrincipal(func(r *http.Request) string {
		if claims := SessionClaims(r.Context()); claims != nil {
			return claims.Email()
		}
		return ""
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/passkey", func(r chi.Router) {
			if s.limiter != nil {
				r.Use(ratelimit.Middleware(s.limiter))
			}
			passkeyhttp.MountChi(r, s.passkeys)

			// Credential management requires a valid session token
			r.Group(func(r chi.Router) {
				r.Use(s.SessionMiddleware())
				passkeyhttp.MountCredentialsChi(r, s.passkeys)
			})
		})

		// Endpoints below require a valid session token
		r.Group(func(r chi.Router) {
			r.Use(s.SessionMiddleware())
			r.Get("/session", s.SessionHandler)
		})
	})

	return r
}

// Start starts the REST API server.
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("Starting HTTPS server", "addr", s.addr)

		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Router returns the configured handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}
