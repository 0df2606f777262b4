package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/platform/postgres"
)

// TestTimeout is the default timeout for test database operations.
const TestTimeout = 5 * time.Second

// Tables in dependency order, children first.
var tables = []string{"generation_likes", "generation_items", "generations"}

var (
	migrateOnce sync.Once
	migrateErr  error

	// serializes tests that share the database
	dbMu sync.Mutex
)

// GetTestDBWithT opens the test database, skipping the test when none is
// configured. The schema is migrated once per process. Tests using the
// returned handle run one at a time and start from empty tables.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skipf("%s not set - skipping database test", EnvDatabaseURL)
	}

	db, err := sql.Open("pgx", GetTestDatabaseURL())
	require.NoError(t, err, "failed to open test database")

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping test database")

	migrateOnce.Do(func() {
		migrateErr = ApplyMigrations(db)
	})
	require.NoError(t, migrateErr, "failed to migrate test database")

	dbMu.Lock()
	require.NoError(t, Truncate(db))

	t.Cleanup(func() {
		if err := Truncate(db); err != nil {
			t.Logf("warning: failed to clean test database: %v", err)
		}
		dbMu.Unlock()
		_ = db.Close()
	})

	return db
}

// ApplyMigrations runs every embedded migration that has not been applied.
func ApplyMigrations(db *sql.DB) error {
	goose.SetBaseFS(postgres.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Truncate removes all rows from the application tables.
func Truncate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
