// Package arangox holds the ArangoDB plumbing shared by the arango backed
// storages: client setup, collections with their indexes and versioned
// schema migrations.
package arangox

import (
	"context"
	"fmt"
	"math"
	"time"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/mathx"
	"go.opentelemetry.io/otel/attribute"
)

type versionRecord struct {
	Version     uint      `json:"version"`
	Description string    `json:"description,omitempty"`
	Package     string    `json:"package"`
	Timestamp   time.Time `json:"timestamp"`
}

const DefaultMigrationsCollection = "migrations"

// AllAvailable used in "Up" or "Down" methods to run all available migrations.
const AllAvailable = -1

// Migrator applies the migrations of one package. Each applied version is
// recorded in the migrations collection; the highest record is the current
// version of the package.
type Migrator struct {
	db                   arangoDriver.Database
	pkg                  string
	dryRun               bool
	l                    *loggerx.Logger
	migrations           Migrations
	migrationsCollection string
}

type NewMigratorOptions struct {
	Database   arangoDriver.Database
	Package    string
	Migrations Migrations
	DryRun     bool
	Logger     *loggerx.Logger
}

func NewMigrator(in NewMigratorOptions) *Migrator {
	migrations := make(Migrations, len(in.Migrations))
	copy(migrations, in.Migrations)
	vers := map[uint]bool{}
	for _, m := range in.Migrations {
		if vers[m.Version] {
			panic(fmt.Sprintf("duplicated migration version %v", m.Version))
		}
		vers[m.Version] = true
	}

	l := in.Logger
	if l == nil {
		l = loggerx.NewDiscard()
	}

	return &Migrator{
		db:                   in.Database,
		pkg:                  in.Package,
		dryRun:               in.DryRun,
		l:                    l.WithFields(attribute.String("package", in.Package)),
		migrations:           migrations,
		migrationsCollection: DefaultMigrationsCollection,
	}
}

// SetMigrationsCollection replaces name of collection for storing migration information.
// By default it is "migrations".
func (m *Migrator) SetMigrationsCollection(name string) {
	m.migrationsCollection = name
}

func (m *Migrator) createCollectionIfNotExist(ctx context.Context) error {
	exist, err := m.db.CollectionExists(ctx, m.migrationsCollection)
	if err != nil {
		return err
	}
	if exist {
		return nil
	} else if m.dryRun {
		err := errorx.FailedPreconditionErrorf("collection %s does not exist", m.migrationsCollection)
		m.l.WithError(err).Error(ctx, "when dry-run mode is enabled, we can't create the missing collection")
		return err
	}

	_, err = EnsureCollection(ctx, m.db, m.migrationsCollection, []IndexParam{
		{Type: IndexTypePersistent, Fields: []string{"version", "package"}, Unique: true},
	})
	return err
}

// Version returns the current version of the package, the latest known
// version and the description of the current one.
func (m *Migrator) Version(ctx context.Context) (current uint, latest uint, desc string, outErr error) {
	m.migrations.Sort()
	if len(m.migrations) > 0 {
		latest = m.migrations[len(m.migrations)-1].Version
	}
	if err := m.createCollectionIfNotExist(ctx); err != nil {
		return 0, latest, "", err
	}

	cursor, err := m.db.Query(ctx, `
		FOR m IN @@collection
			FILTER m.package == @pkg
			SORT m.version DESC
			LIMIT 1
			RETURN m
		`, map[string]interface{}{
		"@collection": m.migrationsCollection,
		"pkg":         m.pkg,
	})
	if err != nil {
		return 0, latest, "", err
	}
	defer cursor.Close()

	var rec versionRecord
	if _, err = cursor.ReadDocument(ctx, &rec); err != nil {
		if arangoDriver.IsNoMoreDocuments(err) {
			return 0, latest, "", nil
		}
		return 0, latest, "", err
	}

	return rec.Version, latest, rec.Description, nil
}

// Up applies the pending migrations up to targetVersion, or all of them when
// targetVersion <= 0.
func (m *Migrator) Up(ctx context.Context, targetVersion int) error {
	currentVersion, latest, _, err := m.Version(ctx)
	if err != nil {
		return err
	}

	latestInt, err := safeUintToInt(latest)
	if err != nil {
		return err
	}

	target := latest
	if targetVersion > 0 {
		target = uint(mathx.Clamp(targetVersion, 0, latestInt))
	}

	col, err := m.db.Collection(ctx, m.migrationsCollection)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion || migration.Up == nil {
			continue
		}
		if migration.Version > target {
			break
		}

		fields := []attribute.KeyValue{
			attribute.Int("version", int(migration.Version)),
			attribute.String("description", migration.Description),
		}
		if m.dryRun {
			m.l.Warn(ctx, "[dry-run] up migration would be applied", fields...)
			continue
		}

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d of %s failed: %w", migration.Version, m.pkg, err)
		}

		if _, err = col.CreateDocument(ctx, versionRecord{
			Version:     migration.Version,
			Package:     m.pkg,
			Timestamp:   time.Now().UTC(),
			Description: migration.Description,
		}); err != nil {
			return err
		}
		m.l.Info(ctx, "applied migration", fields...)
	}

	return nil
}

// Down reverts the applied migrations above targetVersion, or all of them
// when targetVersion <= 0.
func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	curVersion, latest, _, err := m.Version(ctx)
	if err != nil {
		return err
	}

	latestInt, err := safeUintToInt(latest)
	if err != nil {
		return err
	}

	version := curVersion
	target := uint(mathx.Clamp(targetVersion, 0, latestInt))

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > curVersion || migration.Down == nil {
			continue
		}
		if migration.Version <= target {
			break
		}

		if m.dryRun {
			m.l.Warn(ctx, "[dry-run] down migration would be applied",
				attribute.Int("version", int(migration.Version)),
				attribute.String("description", migration.Description),
			)
			continue
		}

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("down migration %d of %s failed: %w", migration.Version, m.pkg, err)
		}

		if i == 0 {
			version = 0
		} else {
			version = m.migrations[i-1].Version
		}
	}

	if m.dryRun {
		m.l.Warn(ctx, "[dry-run] database version would change",
			attribute.Int("from", int(curVersion)),
			attribute.Int("to", int(target)),
		)
		return nil
	}

	cursor, err := m.db.Query(ctx, `
		FOR m IN @@collection
			FILTER m.package == @pkg AND m.version > @version
			REMOVE m IN @@collection
		`, map[string]interface{}{
		"@collection": m.migrationsCollection,
		"pkg":         m.pkg,
		"version":     version,
	})
	if err != nil {
		return err
	}
	return cursor.Close()
}

func safeUintToInt(u uint) (int, error) {
	if u > math.MaxInt {
		return 0, errorx.InvalidArgumentErrorf("uint value is too large to fit in an int")
	}
	// #nosec G115
	return int(u), nil
}
