// Package db opens the SQLite database behind the operation journal and
// keeps its schema current.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// pragma is a connection setting together with the value SQLite reports back
// once it is in effect
type pragma struct {
	name  string
	value string
	want  string
}

var pragmas = []pragma{
	{name: "busy_timeout", value: "5000", want: "5000"},
	{name: "journal_mode", value: "WAL", want: "wal"},
	{name: "synchronous", value: "NORMAL", want: "1"},
	{name: "temp_store", value: "MEMORY", want: "2"},
	{name: "foreign_keys", value: "ON", want: "1"},
}

// Open opens or creates the database at path. The pool holds a single
// connection so every statement sees the pragmas applied here.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	sqlDB, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if err := p.apply(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return sqlDB, nil
}

func (p pragma) apply(ctx context.Context, sqlDB *sqlx.DB) error {
	if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf("PRAGMA %s=%s", p.name, p.value)); err != nil {
		return errors.Wrapf(err, "failed to set pragma %s", p.name)
	}
	var got string
	if err := sqlDB.GetContext(ctx, &got, "PRAGMA "+p.name); err != nil {
		return errors.Wrapf(err, "failed to read pragma %s", p.name)
	}
	if !strings.EqualFold(got, p.want) {
		return errors.Errorf("pragma %s is %s, want %s", p.name, got, p.want)
	}
	return nil
}
