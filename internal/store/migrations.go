package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial history table",
		Up:          migrationV1Up,
	},
	{
		Version:     2,
		Description: "Index history by creation time",
		Up:          migrationV2Up,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS history (
    id          TEXT PRIMARY KEY,
    query       TEXT NOT NULL,
    result      TEXT NOT NULL,
    created_ns  INTEGER NOT NULL
);
`

const migrationV2Up = `
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_ns DESC, id DESC);
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// MigrationStatus reports applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
}

// GetMigrationStatus returns the current migration status.
func GetMigrationStatus(ctx context.Context, db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{LatestVersion: len(migrations)}

	current, err := currentVersion(ctx, db)
	if err != nil {
		// Table might not exist yet
		status.Pending = migrations
		return status, nil
	}
	status.CurrentVersion = current
	for _, m := range migrations {
		if m.Version > current {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"history", "schema_migrations"} {
		var count int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}
	return nil
}
