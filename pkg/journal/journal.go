// Package journal records every mutating command in a SQLite table so that
// `skillctl history` can show what was changed, when, and how it ended.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/db"
	"github.com/jingkaihe/skillctl/pkg/db/migrations"
	"github.com/jingkaihe/skillctl/pkg/logger"
)

// Kind names the command that produced an operation
type Kind string

const (
	KindInstall Kind = "install"
	KindRemove  Kind = "remove"
	KindAdopt   Kind = "adopt"
	KindSync    Kind = "sync"
)

// Status is the outcome of an operation
type Status string

const (
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Operation is one journal row
type Operation struct {
	ID         string     `db:"id" json:"id"`
	Kind       Kind       `db:"kind" json:"kind"`
	SkillName  string     `db:"skill_name" json:"skill_name"`
	Status     Status     `db:"status" json:"status"`
	Detail     string     `db:"detail" json:"detail,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Journal records the start and end of mutating operations
type Journal interface {
	Begin(ctx context.Context, kind Kind, skillName string) (string, error)
	Finish(ctx context.Context, id string, status Status, detail string) error
}

// Nop is a Journal that records nothing
type Nop struct{}

// Begin implements Journal
func (Nop) Begin(context.Context, Kind, string) (string, error) { return "", nil }

// Finish implements Journal
func (Nop) Finish(context.Context, string, Status, string) error { return nil }

const defaultAttempts = 5

// Store is the SQLite-backed Journal
type Store struct {
	db       *sqlx.DB
	now      func() time.Time
	attempts uint
}

// Open opens the journal database at path, applying pending migrations
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}

	applied, err := db.Migrate(ctx, sqlDB, migrations.All())
	if err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to migrate journal")
	}
	if len(applied) > 0 {
		logger.G(ctx).WithField("path", path).WithField("versions", applied).Debug("migrated journal schema")
	}

	return &Store{db: sqlDB, now: time.Now, attempts: defaultAttempts}, nil
}

// SchemaVersion returns the journal's current schema version
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return db.SchemaVersion(ctx, s.db)
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin inserts a running operation and returns its id
func (s *Store) Begin(ctx context.Context, kind Kind, skillName string) (string, error) {
	op := Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		SkillName: skillName,
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
	}

	err := s.withRetry(ctx, func() error {
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO operations (id, kind, skill_name, status, detail, started_at)
			VALUES (:id, :kind, :skill_name, :status, :detail, :started_at)
		`, op)
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to record operation start")
	}
	return op.ID, nil
}

// Finish records the outcome of the operation with id
func (s *Store) Finish(ctx context.Context, id string, status Status, detail string) error {
	if id == "" {
		return nil
	}
	finished := s.now().UTC()

	var affected int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE operations SET status = ?, detail = ?, finished_at = ? WHERE id = ?",
			status, detail, finished, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to record operation outcome")
	}
	if affected == 0 {
		return errors.Errorf("operation %s not found", id)
	}
	return nil
}

// List returns the most recent operations first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Operation, error) {
	query := "SELECT id, kind, skill_name, status, detail, started_at, finished_at FROM operations ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var ops []Operation
	if err := s.db.SelectContext(ctx, &ops, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list operations")
	}
	return ops, nil
}

func (s *Store) withRetry(ctx context.Context, f func() error) error {
	return retry.Do(
		f,
		retry.RetryIf(isBusy),
		retry.Attempts(s.attempts),
		retry.Delay(20*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Debug("journal database busy, retrying")
		}),
	)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
