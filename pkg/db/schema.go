package db

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration is one forward schema change. Version is a YYYYMMDDHHmmss timestamp.
type Migration struct {
	Version     int64
	Description string
	Up          func(*sql.Tx) error
}

const schemaTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		applied_at DATETIME NOT NULL
	)`

// Migrate applies every migration newer than the current schema version,
// oldest first, each in its own transaction. It returns the versions it
// applied, including those applied before a failure.
func Migrate(ctx context.Context, sqlDB *sqlx.DB, migrations []Migration) ([]int64, error) {
	if _, err := sqlDB.ExecContext(ctx, schemaTable); err != nil {
		return nil, errors.Wrap(err, "failed to create schema_migrations table")
	}

	current, err := SchemaVersion(ctx, sqlDB)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	var applied []int64
	for i, m := range pending {
		if i > 0 && pending[i-1].Version == m.Version {
			return applied, errors.Errorf("duplicate migration version %d", m.Version)
		}
		if err := applyMigration(ctx, sqlDB, m); err != nil {
			return applied, errors.Wrapf(err, "migration %d (%s) failed", m.Version, m.Description)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// SchemaVersion returns the newest applied migration version, or 0 for a
// database that has never been migrated.
func SchemaVersion(ctx context.Context, sqlDB *sqlx.DB) (int64, error) {
	var tables int
	err := sqlDB.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'")
	if err != nil {
		return 0, errors.Wrap(err, "failed to look up schema_migrations")
	}
	if tables == 0 {
		return 0, nil
	}

	var version int64
	if err := sqlDB.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

func applyMigration(ctx context.Context, sqlDB *sqlx.DB, m Migration) error {
	tx, err := sqlDB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := m.Up(tx.Tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}
