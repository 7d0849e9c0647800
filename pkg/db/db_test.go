package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	sqlDB, err := Open(ctx, path)
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	for _, p := range pragmas {
		var got string
		require.NoError(t, sqlDB.GetContext(ctx, &got, "PRAGMA "+p.name))
		assert.Equal(t, p.want, got, p.name)
	}
}

func TestOpenFailsWhenParentIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(context.Background(), filepath.Join(blocker, "journal.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create database directory")
}

func createTable(name string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec("CREATE TABLE " + name + " (id INTEGER PRIMARY KEY)")
		return err
	}
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	sqlDB, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func tableExists(t *testing.T, sqlDB *sqlx.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, sqlDB.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name))
	return n == 1
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	sqlDB := openTestDB(t)

	version, err := SchemaVersion(ctx, sqlDB)
	require.NoError(t, err)
	assert.Zero(t, version, "fresh database")

	first := []Migration{
		{Version: 20260101000002, Description: "second", Up: createTable("second")},
		{Version: 20260101000001, Description: "first", Up: createTable("first")},
	}
	applied, err := Migrate(ctx, sqlDB, first)
	require.NoError(t, err)
	assert.Equal(t, []int64{20260101000001, 20260101000002}, applied, "applied in version order")
	assert.True(t, tableExists(t, sqlDB, "first"))
	assert.True(t, tableExists(t, sqlDB, "second"))

	version, err = SchemaVersion(ctx, sqlDB)
	require.NoError(t, err)
	assert.Equal(t, int64(20260101000002), version)

	applied, err = Migrate(ctx, sqlDB, first)
	require.NoError(t, err)
	assert.Empty(t, applied, "nothing pending on a second run")

	more := append(first, Migration{Version: 20260101000003, Description: "third", Up: createTable("third")})
	applied, err = Migrate(ctx, sqlDB, more)
	require.NoError(t, err)
	assert.Equal(t, []int64{20260101000003}, applied)
}

func TestMigrateStopsAtFailure(t *testing.T) {
	ctx := context.Background()
	sqlDB := openTestDB(t)

	broken := errors.New("broken migration")
	applied, err := Migrate(ctx, sqlDB, []Migration{
		{Version: 1, Description: "ok", Up: createTable("ok")},
		{Version: 2, Description: "broken", Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE partial (id INTEGER)"); err != nil {
				return err
			}
			return broken
		}},
		{Version: 3, Description: "never", Up: createTable("never")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, broken))
	assert.Equal(t, []int64{1}, applied)

	assert.True(t, tableExists(t, sqlDB, "ok"))
	assert.False(t, tableExists(t, sqlDB, "partial"), "failed migration is rolled back")
	assert.False(t, tableExists(t, sqlDB, "never"))

	version, err := SchemaVersion(ctx, sqlDB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestMigrateRejectsDuplicateVersions(t *testing.T) {
	sqlDB := openTestDB(t)
	_, err := Migrate(context.Background(), sqlDB, []Migration{
		{Version: 5, Description: "a", Up: createTable("a")},
		{Version: 5, Description: "b", Up: createTable("b")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 5")
}
