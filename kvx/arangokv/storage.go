// Package arangokv keeps entries as documents of an ArangoDB collection.
package arangokv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/pkg/errors"
	"github.com/rentapp/x/arangox"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/loggerx"
)

const (
	DefaultDatabase   = "rentapp"
	DefaultCollection = "kv_entries"
	migrationsPackage = "kvx/arangokv"
)

type Options struct {
	arangox.ClientConfig
	Database   string
	Collection string
	Origin     string
	Logger     *loggerx.Logger
}

type entry struct {
	Key    string `json:"_key,omitempty"`
	Origin string `json:"origin"`
	Name   string `json:"key"`
	Value  string `json:"value"`
}

type Storage struct {
	db     arangoDriver.Database
	col    arangoDriver.Collection
	origin string
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
)

// New connects to ArangoDB and migrates the entries collection.
func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Origin == "" {
		return nil, errorx.InvalidArgumentErrorf("arangokv: an origin is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	client, err := arangox.NewClient(ctx, opts.ClientConfig)
	if err != nil {
		return nil, err
	}
	db, err := arangox.EnsureDatabase(ctx, client, opts.Database)
	if err != nil {
		return nil, errors.Wrapf(err, "arangokv: could not open database %s", opts.Database)
	}

	if err := arangox.NewMigrator(arangox.NewMigratorOptions{
		Database:   db,
		Package:    migrationsPackage,
		Migrations: migrations(opts.Collection),
		Logger:     opts.Logger,
	}).Up(ctx, arangox.AllAvailable); err != nil {
		return nil, errors.Wrap(err, "arangokv: could not migrate")
	}

	col, err := db.Collection(ctx, opts.Collection)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Storage{db: db, col: col, origin: opts.Origin}, nil
}

func migrations(collection string) arangox.Migrations {
	return arangox.Migrations{
		{
			Version:     1,
			Description: "create the entries collection",
			Up: func(ctx context.Context, db arangoDriver.Database) error {
				_, err := arangox.EnsureCollection(ctx, db, collection, []arangox.IndexParam{
					{Type: arangox.IndexTypePersistent, Fields: []string{"origin", "key"}, Unique: true},
				})
				return err
			},
			Down: func(ctx context.Context, db arangoDriver.Database) error {
				col, err := db.Collection(ctx, collection)
				if err != nil {
					return err
				}
				return col.Remove(ctx)
			},
		},
	}
}

// documentKey derives a valid document key, since origins and keys may hold
// characters ArangoDB rejects in _key.
func (s *Storage) documentKey(key string) string {
	sum := sha256.Sum256([]byte(s.origin + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return "", false, err
	}

	var e entry
	if _, err := s.col.ReadDocument(ctx, s.documentKey(key), &e); arangoDriver.IsNotFoundGeneral(err) {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.WithStack(err)
	}
	return e.Value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}

	cursor, err := s.db.Query(ctx, `
		UPSERT { _key: @key }
			INSERT { _key: @key, origin: @origin, key: @name, value: @value }
			UPDATE { value: @value }
			IN @@collection
		`, map[string]interface{}{
		"@collection": s.col.Name(),
		"key":         s.documentKey(key),
		"origin":      s.origin,
		"name":        key,
		"value":       value,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return cursor.Close()
}

func (s *Storage) CompareAndSwap(ctx context.Context, key string, old *string, next string) (bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return false, err
	}

	if old == nil {
		_, err := s.col.CreateDocument(ctx, entry{
			Key:    s.documentKey(key),
			Origin: s.origin,
			Name:   key,
			Value:  next,
		})
		if arangoDriver.IsConflict(err) {
			return false, nil
		}
		return err == nil, errors.WithStack(err)
	}

	cursor, err := s.db.Query(ctx, `
		FOR e IN @@collection
			FILTER e._key == @key AND e.value == @old
			UPDATE e WITH { value: @next } IN @@collection
			RETURN NEW._key
		`, map[string]interface{}{
		"@collection": s.col.Name(),
		"key":         s.documentKey(key),
		"old":         *old,
		"next":        next,
	})
	if arangoDriver.IsConflict(err) {
		return false, nil
	} else if err != nil {
		return false, errors.WithStack(err)
	}
	defer cursor.Close()
	return cursor.HasMore(), nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	cursor, err := s.db.Query(ctx, `
		FOR e IN @@collection
			FILTER e.origin == @origin
			SORT e.key
			RETURN e.key
		`, map[string]interface{}{
		"@collection": s.col.Name(),
		"origin":      s.origin,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer cursor.Close()

	keys := make([]string, 0)
	for cursor.HasMore() {
		var k string
		if _, err := cursor.ReadDocument(ctx, &k); err != nil {
			return nil, errors.WithStack(err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
