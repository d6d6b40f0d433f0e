package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerask/ledgerask/internal/api"
	"github.com/ledgerask/ledgerask/internal/app"
	"github.com/ledgerask/ledgerask/internal/auth"
	"github.com/ledgerask/ledgerask/internal/config"
	"github.com/ledgerask/ledgerask/internal/observability"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("ledgerask-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	handler, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.Bool("guard_enabled", cfg.Guard.Enabled),
			slog.Bool("auth_required", cfg.Auth.Required),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func buildHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (http.Handler, error) {
	opener, err := app.Opener(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}
	service, err := app.Service(cfg, opener, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Asker:             service,
		Schema:            service,
		Readiness:         api.CombineReadinessChecks(api.CheckStore(opener), api.CheckGenerationConfig(cfg)),
		DependencyTimeout: 5 * time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return nil, fmt.Errorf("parse static auth keys: %w", err)
		}
		logger.Info("static api keys loaded", slog.Int("count", validator.Len()))
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}
	return api.NewHandler(cfg, deps), nil
}
