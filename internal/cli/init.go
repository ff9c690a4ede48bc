// Package cli holds the start-up and shutdown steps shared by cmd/contas
// and cmd/contas-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"contas/internal/config"
	"contas/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. An unknown level falls back to info.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Component = component
	lc.Format = cfg.LogFormat
	level, err := log.ParseLevel(cfg.LogLevel)
	lc.Level = level

	logger := log.New(lc)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Ignoring log level", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and exits the process when it
// is invalid. extra runs additional checks, e.g. worker-only settings.
func LoadAndValidateConfig(extra ...func(*config.Config) error) *config.Config {
	cfg := config.Load()
	err := cfg.Validate()
	for _, check := range extra {
		if err != nil {
			break
		}
		err = check(cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// Task is a long-running part of a process. It must return once ctx is
// cancelled.
type Task func(ctx context.Context) error

// Run starts every task and blocks until SIGINT/SIGTERM or until one task
// fails. shutdown is then called with a context bounded by timeout. The
// first task error, if any, is returned.
func Run(ctx context.Context, logger *log.Logger, timeout time.Duration, shutdown func(context.Context) error, tasks ...Task) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		}
		if shutdown == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
			return err
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil {
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}
	return err
}
