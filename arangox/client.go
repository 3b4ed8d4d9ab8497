package arangox

import (
	"context"

	arangoDriver "github.com/arangodb/go-driver"
	arangoHttp "github.com/arangodb/go-driver/http"
	"github.com/rentapp/x/errorx"
)

type ClientConfig struct {
	Endpoints []string `json:"endpoints" koanf:"endpoints"`
	Username  string   `json:"username" koanf:"username"`
	Password  string   `json:"password" koanf:"password"`
}

// NewClient connects to the servers of c and checks they answer.
func NewClient(ctx context.Context, c ClientConfig) (arangoDriver.Client, error) {
	if len(c.Endpoints) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one arango endpoint is required")
	}

	conn, err := arangoHttp.NewConnection(arangoHttp.ConnectionConfig{
		Endpoints: c.Endpoints,
	})
	if err != nil {
		return nil, err
	}

	cfg := arangoDriver.ClientConfig{Connection: conn}
	if c.Username != "" {
		cfg.Authentication = arangoDriver.BasicAuthentication(c.Username, c.Password)
	}

	client, err := arangoDriver.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := client.Version(ctx); err != nil {
		return nil, errorx.UnavailableErrorf("arango endpoints %v are unreachable", c.Endpoints).WithOriginalError(err)
	}

	return client, nil
}

// EnsureDatabase returns the database name, creating it if needed.
func EnsureDatabase(ctx context.Context, client arangoDriver.Client, name string) (arangoDriver.Database, error) {
	exists, err := client.DatabaseExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return client.Database(ctx, name)
	}

	db, err := client.CreateDatabase(ctx, name, nil)
	if arangoDriver.IsConflict(err) {
		return client.Database(ctx, name)
	}
	return db, err
}
