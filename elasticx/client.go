// Package elasticx sets up the typed Elasticsearch client shared by the
// elasticsearch backed storages.
package elasticx

import (
	"context"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/typedapi/indices/create"
	"github.com/rentapp/x/errorx"
)

type Config struct {
	Addresses []string `json:"addresses" koanf:"addresses"`
	Username  string   `json:"username" koanf:"username"`
	Password  string   `json:"password" koanf:"password"`
}

// NewClient creates a typed client and checks the cluster answers.
func NewClient(ctx context.Context, c Config) (*elasticsearch.TypedClient, error) {
	if len(c.Addresses) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one elasticsearch address is required")
	}

	es, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses: c.Addresses,
		Username:  c.Username,
		Password:  c.Password,
	})
	if err != nil {
		return nil, err
	}

	ok, err := es.Ping().IsSuccess(ctx)
	if err != nil || !ok {
		return nil, errorx.UnavailableErrorf("elasticsearch %v is unreachable", c.Addresses).WithOriginalError(err)
	}

	return es, nil
}

// EnsureIndex creates the index name with req unless it exists.
func EnsureIndex(ctx context.Context, es *elasticsearch.TypedClient, name string, req *create.Request) error {
	exists, err := es.Indices.Exists(name).IsSuccess(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = es.Indices.Create(name).Request(req).Do(ctx)
	if IsAlreadyExistsError(err) {
		return nil
	}
	return err
}
