// Package sqlkv keeps entries in a SQL table, one row per origin and key.
package sqlkv

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver
)

const (
	DriverName = "sqlite"
	TableName  = "kv_entries"
)

const createTable = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
	origin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (origin, key)
)`

type Storage struct {
	db *sql.DB
	squirrel.StatementBuilderType
	origin string
	owned  bool
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
)

// Open opens the SQLite database at dsn and prepares the entries table.
func Open(ctx context.Context, dsn, origin string) (*Storage, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// SQLite allows a single writer; sharing one connection also keeps
	// ":memory:" databases alive for the storage lifetime.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, origin)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New uses an existing database handle. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, origin string) (*Storage, error) {
	if origin == "" {
		return nil, errorx.InvalidArgumentErrorf("sqlkv: an origin is required")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errorx.UnavailableErrorf("sqlkv: database unreachable").WithOriginalError(err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, errors.Wrap(err, "sqlkv: could not create table")
	}

	return &Storage{
		db:                   db,
		StatementBuilderType: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).RunWith(db),
		origin:               origin,
	}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return "", false, err
	}

	var value string
	err := s.Select("value").
		From(TableName).
		Where(squirrel.Eq{"origin": s.origin, "key": key}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.WithStack(err)
	}
	return value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}

	_, err := s.Insert(TableName).
		Columns("origin", "key", "value").
		Values(s.origin, key, value).
		Suffix("ON CONFLICT (origin, key) DO UPDATE SET value = excluded.value").
		ExecContext(ctx)
	return errors.WithStack(err)
}

func (s *Storage) CompareAndSwap(ctx context.Context, key string, old *string, next string) (bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return false, err
	}

	var (
		res sql.Result
		err error
	)
	if old == nil {
		res, err = s.Insert(TableName).
			Columns("origin", "key", "value").
			Values(s.origin, key, next).
			Suffix("ON CONFLICT (origin, key) DO NOTHING").
			ExecContext(ctx)
	} else {
		res, err = s.Update(TableName).
			Set("value", next).
			Where(squirrel.Eq{"origin": s.origin, "key": key, "value": *old}).
			ExecContext(ctx)
	}
	if err != nil {
		return false, errors.WithStack(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n == 1, nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.Select("key").
		From(TableName).
		Where(squirrel.Eq{"origin": s.origin}).
		OrderBy("key").
		QueryContext(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.WithStack(err)
		}
		keys = append(keys, k)
	}
	return keys, errors.WithStack(rows.Err())
}

// Close closes the database if it was opened by Open.
func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return errors.WithStack(s.db.Close())
}
