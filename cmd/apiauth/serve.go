// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/apiauth/internal/api"
	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/internal/config"
	"github.com/holomush/apiauth/internal/logging"
	"github.com/holomush/apiauth/internal/strategy"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API behind the configured auth strategy",
		Long: `Serve the REST API. The auth strategy, session cookie, session
lifetime and unauthenticated paths come from the config file, APIAUTH_*
environment variables and flags, in increasing order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps runs the API server until ctx is cancelled or a signal
// arrives. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.Code("SERVE_INVALID_CONFIG").Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "apiauth",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   level,
	})
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	backend, err := deps.BackendFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("SERVE_BACKEND_FAILED").Wrap(err)
	}
	defer backend.Close()

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	service, err := auth.NewAuthService(backend.Users, hasher, auth.WithLogger(logger))
	if err != nil {
		return err
	}

	strat, err := strategy.New(cfg.AuthType, strategy.Deps{
		Users:    backend.Users,
		Hasher:   hasher,
		Registry: strategy.NewRegistry(),
		Sessions: backend.Sessions,
		Cookie:   cfg.SessionName,
		TTL:      cfg.SessionDuration,
		Options:  []strategy.Option{strategy.WithLogger(logger)},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiCfg := api.Config{
		Strategy:      strat,
		Service:       service,
		Users:         backend.Users,
		Hasher:        hasher,
		Excluded:      cfg.ExcludedPaths,
		SessionCookie: cfg.SessionName,
		Logger:        logger,
	}

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, backend.Ready)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").With("addr", cfg.MetricsAddr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		apiCfg.Metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := api.New(apiCfg)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.ListenAddr)
	if err != nil {
		return oops.Code("SERVE_LISTEN_FAILED").With("addr", cfg.ListenAddr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("apiauth listening on " + listener.Addr().String())
	logger.Info("api server ready",
		"addr", listener.Addr().String(),
		"strategy", strat.Name(),
		"excluded_paths", cfg.ExcludedPaths,
	)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr := <-errChan:
		runErr = oops.Code("SERVE_FAILED").Wrap(serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// monitorServerErrors cancels ctx when errCh reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
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
			cancel()
		}
	case <-ctx.Done():
	}
}
