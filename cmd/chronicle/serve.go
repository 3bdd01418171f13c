package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/chronicle"
)

const shutdownTimeout = 30 * time.Second

func runServe(ctx context.Context, configPath string) error {
	cfg, err := chronicle.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	closer, err := chronicle.SetupLogger(cfg)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(sigCtx, cfg)
}

// serve runs the API server until ctx is done and then drains running jobs.
func serve(ctx context.Context, cfg *chronicle.Config) error {
	if cfg.Metrics.Enabled {
		if err := chronicle.RegisterMetricsDefault(); err != nil {
			slog.Warn("Failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := chronicle.ServeMetrics(cfg.Metrics.Listen); err != nil {
					slog.Error("Metrics server error", "addr", cfg.Metrics.Listen, "error", err)
				}
			}()
		}
	}

	app, err := chronicle.New(ctx, cfg)
	if err != nil {
		return err
	}
	server, err := app.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath)
	if err != nil {
		_ = app.Shutdown(context.Background())
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	slog.Info("Starting chronicle HTTP server", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	<-ctx.Done()
	slog.Info("Shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := server.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := app.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("runner shutdown: %w", err))
	}
	return errors.Join(errs...)
}
