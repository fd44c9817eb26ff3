// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/logging"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/web"
)

// serveFlagKeys maps serve flags onto config keys.
var serveFlagKeys = map[string]string{
	"addr":             "server.addr",
	"metrics-addr":     "metrics.addr",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"users-backend":    "users.backend",
	"sessions-backend": "sessions.backend",
	"auto-migrate":     "database.auto_migrate",
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication HTTP API",
		Long: `Run the HTTP API serving /signup, /login, /logout and session-gated
routes, plus the optional metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), serveFlagKeys)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}

	defaults := config.Defaults()
	cmd.Flags().String("addr", defaults["server.addr"].(string), "API listen address")
	cmd.Flags().String("metrics-addr", defaults["metrics.addr"].(string), "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("users-backend", config.BackendPostgres, "account store (postgres or memory)")
	cmd.Flags().String("sessions-backend", config.BackendPostgres, "session store (postgres, redis or memory)")
	cmd.Flags().Bool("auto-migrate", true, "apply pending migrations on startup")

	return cmd
}

// newHasher builds the configured password hasher.
func newHasher(cfg config.HasherConfig) (auth.PasswordHasher, error) {
	return auth.NewPasswordHasher(cfg.Algorithm, auth.Argon2Params{
		Time:    cfg.Argon2Time,
		Memory:  cfg.Argon2Memory,
		Threads: cfg.Argon2Threads,
	}, cfg.BcryptCost)
}

// runServeWithDeps runs the API until ctx is cancelled or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "authd",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	gin.SetMode(cfg.Server.GinMode)

	sameSite, err := cfg.Server.SameSite()
	if err != nil {
		return err
	}
	hasher, err := newHasher(cfg.Hasher)
	if err != nil {
		return err
	}

	stores, err := openBackends(ctx, cfg, deps, cfg.Database.AutoMigrate, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	serverErrs := make(chan error, 2)

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		srv := observability.NewServer(cfg.Metrics.Addr, stores.ready, logger)
		metrics = srv.Metrics()
		obsServer = srv
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	opts := []auth.Option{auth.WithRecorder(metrics), auth.WithLogger(logger)}
	if stores.transactor != nil {
		opts = append(opts, auth.WithTransactor(stores.transactor))
	}
	svc, err := auth.NewService(stores.users, stores.sessions, hasher, opts...)
	if err != nil {
		return err
	}

	if cfg.Sessions.SweepInterval > 0 && cfg.Sessions.Backend != config.BackendRedis {
		sweeper, err := auth.NewSweeper(stores.sessions, cfg.Sessions.SweepInterval, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	router := web.NewRouter(web.RouterConfig{
		Auth:           svc,
		Logger:         logger,
		Observer:       metrics,
		Cookies:        web.CookieOptions{Secure: cfg.Server.CookieSecure, SameSite: sameSite},
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	api := web.NewServer(cfg.Server.Addr, router, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, serverErrs, "api")

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopServer(cfg, logger, "api", api.Stop)
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, serverErrs, "observability")
	}

	cmd.Println("authd serving on " + api.Addr())
	logger.Info("authd ready", "addr", api.Addr(), "version", version)
	deps.Ready(api.Addr())

	<-ctx.Done()
	logger.Info("shutting down...")

	stopServer(cfg, logger, "api", api.Stop)
	if obsServer != nil {
		stopServer(cfg, logger, "observability", obsServer.Stop)
	}

	select {
	case err := <-serverErrs:
		return err
	default:
	}
	logger.Info("shutdown complete")
	return nil
}

func stopServer(cfg *config.Config, logger *slog.Logger, name string, stop func(context.Context) error) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := stop(shutdownCtx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors forwards a server error to failed and cancels ctx.
// It exits when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, failed chan<- error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			select {
			case failed <- oops.With("server", serverName).Wrap(err):
			default:
			}
			cancel()
		}
	case <-ctx.Done():
	}
}
