// Package main implements the entry point for the UI Battles API server,
// which runs one prompt against several models and serves the results as a
// public gallery.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run database migrations: up, down, status or version")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads the configuration and either runs a migration command or serves
// the API until SIGINT or SIGTERM.
func run(migrateCmd string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	log := logger.Setup(cfg.Server)

	if migrateCmd != "" {
		return runMigrations(context.Background(), cfg, migrateCmd, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
