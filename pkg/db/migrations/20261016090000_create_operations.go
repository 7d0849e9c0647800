package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillctl/pkg/db"
)

// Migration20261016090000CreateOperations creates the operation journal table.
func Migration20261016090000CreateOperations() db.Migration {
	return db.Migration{
		Version:     20261016090000,
		Description: "Create operations table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS operations (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					skill_name TEXT NOT NULL,
					status TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					started_at DATETIME NOT NULL,
					finished_at DATETIME
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create operations table")
			}
			return nil
		},
	}
}
