package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/db"
)

// Migration20261016090001AddOperationsIndexes indexes the journal for history listings.
func Migration20261016090001AddOperationsIndexes() db.Migration {
	return db.Migration{
		Version:     20261016090001,
		Description: "Add indexes to operations table",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_operations_skill_name ON operations(skill_name)",
			}
			for _, stmt := range indexes {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to execute: %s", stmt)
				}
			}
			return nil
		},
	}
}
