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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-moneta/internal/config"
	"github.com/jeremyhahn/go-moneta/internal/migrate"
	"github.com/jeremyhahn/go-moneta/internal/rest"
	"github.com/jeremyhahn/go-moneta/internal/storage/postgres"
	"github.com/jeremyhahn/go-moneta/pkg/health"
	"github.com/jeremyhahn/go-moneta/pkg/logging"
	"github.com/jeremyhahn/go-moneta/pkg/metrics"
	"github.com/jeremyhahn/go-moneta/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-moneta/pkg/passkey/http"
	"github.com/jeremyhahn/go-moneta/pkg/ratelimit"
	"github.com/jeremyhahn/go-moneta/pkg/session"
)

// serveCmd runs the passkey service until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the passkey authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		collector := metrics.StartResourceCollector(ctx, 15*time.Second)
		defer collector.Stop()
	} else {
		metrics.Disable()
	}

	checker := health.NewChecker()

	var identities passkey.IdentityStore
	var credentials passkey.CredentialStore

	if cfg.Database.DSN != "" {
		if cfg.Database.Migrate {
			logger.Info("Applying database migrations")
			if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
		}

		db, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		identities = postgres.NewIdentityStore(db)
		credentials = postgres.NewCredentialStore(db)
		checker.RegisterCheck("database", databaseCheck(db))

		logger.Info("Using PostgreSQL stores")
	} else {
		identities = passkey.NewMemoryIdentityStore()
		credentials = passkey.NewMemoryCredentialStore()

		logger.Warn("No database configured, using in-memory stores")
	}

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          &cfg.Passkey,
		IdentityStore:   identities,
		CredentialStore: credentials,
	})
	if err != nil {
		return fmt.Errorf("failed to create passkey service: %w", err)
	}

	issuer, err := session.NewIssuer(&session.Config{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
		TTL:      cfg.Session.TTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create session issuer: %w", err)
	}

	handler := passkeyhttp.NewHandler(svc).
		WithLogger(logger).
		WithTokenIssuer(issuer)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&cfg.RateLimit)
		defer limiter.Stop()
	}

	server, err := rest.NewServer(&rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		CORSOrigins:    cfg.AllowedOrigins(),
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Passkeys:       handler,
		Issuer:         issuer,
		Health:         checker,
		RateLimit:      limiter,
		Logger:         logger,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	checker.MarkStarted()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Passkey service started",
		"addr", server.Addr(),
		"rp_id", cfg.Passkey.RPID)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Stop(shutdownCtx)
}

// databaseCheck reports database connectivity for the readiness probe.
func databaseCheck(db *postgres.DB) health.CheckFunc {
	return func(ctx context.Context) health.CheckResult {
		if err := db.Pool.QueryRow(ctx, "SELECT 1").Scan(new(int)); err != nil {
			return health.CheckResult{
				Name:   "database",
				Status: health.StatusUnhealthy,
				Error:  err.Error(),
			}
		}
		return health.CheckResult{
			Name:    "database",
			Status:  health.StatusHealthy,
			Message: "Identity and credential stores reachable",
		}
	}
}
