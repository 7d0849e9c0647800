// Package migrations contains the database migrations for the operation journal.
// Migrations use timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillctl/pkg/db"
)

// All returns all registered migrations. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261016090000CreateOperations(),
		Migration20261016090001AddOperationsIndexes(),
	}
}
