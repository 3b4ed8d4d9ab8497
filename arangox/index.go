package arangox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/rentapp/x/errorx"
)

type IndexType int

const (
	IndexTypePersistent IndexType = iota
	IndexTypeTTL
)

var (
	IndexType_name = map[int]string{
		0: "PERSISTENT",
		1: "TIME_TO_LIVE",
	}
	IndexType_value = map[string]int{
		"PERSISTENT":   0,
		"TIME_TO_LIVE": 1,
	}
)

type IndexParam struct {
	Type        IndexType
	Fields      []string
	Unique      bool
	ExpireAfter int
}

func (u IndexType) String() string {
	return IndexType_name[int(u)]
}

func ParseIndexType(s string) (IndexType, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	value, ok := IndexType_value[s]
	if !ok {
		return IndexType(0), errorx.InvalidArgumentErrorf("%q is not a valid index type", s)
	}

	return IndexType(value), nil
}

func (u IndexType) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *IndexType) UnmarshalJSON(data []byte) (err error) {
	var indexType string
	if err := json.Unmarshal(data, &indexType); err != nil {
		return err
	}

	*u, err = ParseIndexType(indexType)
	return err
}

// EnsureIndexes creates the missing indexes of col.
func EnsureIndexes(ctx context.Context, col arangoDriver.Collection, indexes []IndexParam) error {
	for _, idx := range indexes {
		var err error
		switch idx.Type {
		case IndexTypePersistent:
			_, _, err = col.EnsurePersistentIndex(ctx, idx.Fields, &arangoDriver.EnsurePersistentIndexOptions{
				Unique: idx.Unique,
			})
		case IndexTypeTTL:
			if len(idx.Fields) != 1 {
				return errorx.InvalidArgumentErrorf("a ttl index covers exactly one field, got %d", len(idx.Fields))
			}
			_, _, err = col.EnsureTTLIndex(ctx, idx.Fields[0], idx.ExpireAfter, nil)
		default:
			return errorx.InvalidArgumentErrorf("unsupported index type %d", idx.Type)
		}

		if err != nil {
			return fmt.Errorf("could not ensure %s index on %v: %w", idx.Type, idx.Fields, err)
		}
	}

	return nil
}

// EnsureCollection returns the collection name of db, creating it with its
// indexes when it does not exist yet.
func EnsureCollection(ctx context.Context, db arangoDriver.Database, name string, indexes []IndexParam) (arangoDriver.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}

	var col arangoDriver.Collection
	if exists {
		col, err = db.Collection(ctx, name)
	} else {
		col, err = db.CreateCollection(ctx, name, nil)
		if arangoDriver.IsConflict(err) {
			col, err = db.Collection(ctx, name)
		}
	}
	if err != nil {
		return nil, err
	}

	return col, EnsureIndexes(ctx, col, indexes)
}
