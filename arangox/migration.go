package arangox

import (
	"context"
	"sort"

	arangoDriver "github.com/arangodb/go-driver"
)

// MigrationFunc is used to define actions to be performed for a migration.
type MigrationFunc func(ctx context.Context, db arangoDriver.Database) error

// Migration is a single versioned change of a database schema. Versions must
// be unique within a package; Down may be nil for irreversible changes.
type Migration struct {
	Version     uint
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

type Migrations []Migration

func (ms Migrations) Sort() {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].Version < ms[j].Version
	})
}

func (ms Migrations) HasVersion(version uint) bool {
	for _, m := range ms {
		if m.Version == version {
			return true
		}
	}
	return false
}
