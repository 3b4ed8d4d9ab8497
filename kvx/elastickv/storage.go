// Package elastickv keeps entries as documents of an Elasticsearch index.
package elastickv

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v9/typedapi/indices/create"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types/enums/dynamicmapping"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types/enums/optype"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types/enums/refresh"
	"github.com/pkg/errors"
	"github.com/rentapp/x/elasticx"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
)

const (
	DefaultIndex = "rentapp-kv-entries"
	// maxKeys bounds Keys to a single search page.
	maxKeys = 10000
)

var entriesIndex = &create.Request{
	Mappings: &types.TypeMapping{
		Dynamic: &dynamicmapping.Strict,
		Properties: map[string]types.Property{
			"origin": types.NewKeywordProperty(),
			"key":    types.NewKeywordProperty(),
			"value":  types.NewKeywordProperty(),
		},
	},
}

type Options struct {
	elasticx.Config
	Index  string
	Origin string
}

type entry struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

type Storage struct {
	es     *elasticsearch.TypedClient
	index  string
	origin string
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
)

func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Origin == "" {
		return nil, errorx.InvalidArgumentErrorf("elastickv: an origin is required")
	}
	if opts.Index == "" {
		opts.Index = DefaultIndex
	}

	es, err := elasticx.NewClient(ctx, opts.Config)
	if err != nil {
		return nil, err
	}
	if err := elasticx.EnsureIndex(ctx, es, opts.Index, entriesIndex); err != nil {
		return nil, errors.Wrapf(err, "elastickv: could not create index %s", opts.Index)
	}

	return &Storage{es: es, index: opts.Index, origin: opts.Origin}, nil
}

func (s *Storage) documentID(key string) string {
	return s.origin + ":" + key
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	e, _, found, err := s.get(ctx, key)
	return e.Value, found, err
}

// get returns the entry of key along with the sequence number and primary
// term needed for a conditional write.
func (s *Storage) get(ctx context.Context, key string) (entry, [2]string, bool, error) {
	var e entry
	if err := kvx.ValidateKey(key); err != nil {
		return e, [2]string{}, false, err
	}

	res, err := s.es.Get(s.index, s.documentID(key)).Do(ctx)
	if elasticx.IsNotFoundError(err) {
		return e, [2]string{}, false, nil
	} else if err != nil {
		return e, [2]string{}, false, errors.WithStack(err)
	}
	if !res.Found {
		return e, [2]string{}, false, nil
	}

	if err := json.Unmarshal(res.Source_, &e); err != nil {
		return e, [2]string{}, false, errorx.InternalErrorf("elastickv: malformed document %s", res.Id_).WithOriginalError(err)
	}

	var version [2]string
	if res.SeqNo_ != nil && res.PrimaryTerm_ != nil {
		version = [2]string{strconv.FormatInt(*res.SeqNo_, 10), strconv.FormatInt(*res.PrimaryTerm_, 10)}
	}
	return e, version, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}

	_, err := s.es.Index(s.index).
		Id(s.documentID(key)).
		Document(entry{Origin: s.origin, Key: key, Value: value}).
		Refresh(refresh.True).
		Do(ctx)
	return errors.WithStack(err)
}

func (s *Storage) CompareAndSwap(ctx context.Context, key string, old *string, next string) (bool, error) {
	cur, version, found, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}

	req := s.es.Index(s.index).
		Id(s.documentID(key)).
		Document(entry{Origin: s.origin, Key: key, Value: next}).
		Refresh(refresh.True)

	switch {
	case old == nil && found, old != nil && (!found || cur.Value != *old):
		return false, nil
	case old == nil:
		req = req.OpType(optype.Create)
	default:
		req = req.IfSeqNo(version[0]).IfPrimaryTerm(version[1])
	}

	if _, err := req.Do(ctx); elasticx.IsConflictError(err) {
		return false, nil
	} else if err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	size := maxKeys
	res, err := s.es.Search().
		Index(s.index).
		Request(&search.Request{
			Size: &size,
			Query: &types.Query{
				Term: map[string]types.TermQuery{
					"origin": {Value: s.origin},
				},
			},
		}).
		Do(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	keys := make([]string, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var e entry
		if err := json.Unmarshal(hit.Source_, &e); err != nil {
			return nil, errorx.InternalErrorf("elastickv: malformed document").WithOriginalError(err)
		}
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
