package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/platform/postgres"
)

// slogGooseLogger adapts the goose logger interface to use slog
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements the goose.Logger Printf method by forwarding messages to slog.Info
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements the goose.Logger Fatalf method by forwarding error messages to slog.Error.
// It does not exit; the error is returned to main.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// runMigrations applies a goose command to the configured database using the
// migrations embedded in the binary.
func runMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	migrationLogger := logger.With(
		"component", "migrations",
		"command", command,
	)

	apply, err := gooseCommand(command)
	if err != nil {
		return err
	}

	migrationLogger.Info("Starting migration operation",
		"url", maskDatabaseURL(cfg.Database.URL))
	startTime := time.Now()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			migrationLogger.Error("Error closing database connection", "error", err)
		}
	}()

	goose.SetLogger(&slogGooseLogger{logger: migrationLogger})
	goose.SetBaseFS(postgres.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := apply(ctx, db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	migrationLogger.Info("Migration operation completed",
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

type migrationFunc func(ctx context.Context, db *sql.DB, dir string) error

// gooseCommand maps a -migrate value onto the goose operation it runs.
func gooseCommand(command string) (migrationFunc, error) {
	switch command {
	case "up":
		return func(ctx context.Context, db *sql.DB, dir string) error { return goose.UpContext(ctx, db, dir) }, nil
	case "down":
		return func(ctx context.Context, db *sql.DB, dir string) error { return goose.DownContext(ctx, db, dir) }, nil
	case "status":
		return func(ctx context.Context, db *sql.DB, dir string) error { return goose.StatusContext(ctx, db, dir) }, nil
	case "version":
		return func(ctx context.Context, db *sql.DB, dir string) error { return goose.VersionContext(ctx, db, dir) }, nil
	default:
		return nil, fmt.Errorf("unknown migration command %q: use up, down, status or version", command)
	}
}

// maskDatabaseURL masks the password in a database URL for safe logging.
func maskDatabaseURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}

	if parsedURL.User != nil {
		if _, hasPassword := parsedURL.User.Password(); hasPassword {
			parsedURL.User = url.UserPassword(parsedURL.User.Username(), "****")
		}
		return parsedURL.String()
	}

	return dbURL
}

// extractHostFromURL extracts the hostname from a database URL for logging
func extractHostFromURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "unknown"
	}

	return parsedURL.Hostname()
}
