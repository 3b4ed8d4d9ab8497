package main

import (
	"context"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/featureflagx/featureflaghttp"
	"github.com/rentapp/x/httpx"
	"github.com/rentapp/x/internal/config"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/autosetup"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/persistencex"
	"github.com/rentapp/x/pubsubx"
	pubsubautosetup "github.com/rentapp/x/pubsubx/autosetup"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/rentapp/x/timerx"
)

// backend runs the commands either on the configured storage or on a
// remote flagd.
type backend interface {
	IsEnabled(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error)
	Enable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error)
	Disable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error)
	Toggle(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error)
	List(ctx context.Context) (map[featureflagx.FeatureFlag]bool, error)
	Stored(ctx context.Context) ([]featureflagx.FeatureFlag, error)
	Watch(ctx context.Context, fn func(ff featureflagx.FeatureFlag, enabled bool)) error
	Close() error
}

type localBackend struct {
	s       *featureflagx.Store
	storage kvx.Storage
	pubsub  pubsubx.PubSub
}

func newLocalBackend(ctx context.Context, l *loggerx.Logger, c *config.Config) (*localBackend, error) {
	storage, err := autosetup.NewStorage(ctx, l, c.Origin, &c.Storage)
	if err != nil {
		return nil, err
	}

	ps, err := pubsubautosetup.New(ctx, l, &c.Events)
	if err != nil {
		_ = kvx.Close(storage)
		return nil, err
	}

	opts := []featureflagx.StoreOption{featureflagx.WithLogger(l)}
	if ps != nil {
		opts = append(opts, featureflagx.WithPublisher(ps.Publisher(), messagex.Topic(c.Events.Topic)))
	}
	if c.Toggle.Atomic {
		opts = append(opts, featureflagx.WithAtomicToggle())
	}

	return &localBackend{s: featureflagx.NewStore(storage, opts...), storage: storage, pubsub: ps}, nil
}

func (b *localBackend) IsEnabled(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.s.IsEnabled(ctx, ff), nil
}

func (b *localBackend) Enable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	b.s.Enable(ctx, ff)
	return b.s.IsEnabled(ctx, ff), nil
}

func (b *localBackend) Disable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	b.s.Disable(ctx, ff)
	return b.s.IsEnabled(ctx, ff), nil
}

func (b *localBackend) Toggle(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.s.Toggle(ctx, ff), nil
}

func (b *localBackend) List(ctx context.Context) (map[featureflagx.FeatureFlag]bool, error) {
	out := map[featureflagx.FeatureFlag]bool{}
	for ff, v := range b.s.Snapshot(ctx).GetFlags() {
		out[ff] = v.IsEnabled()
	}
	return out, nil
}

func (b *localBackend) Stored(ctx context.Context) ([]featureflagx.FeatureFlag, error) {
	return b.s.Stored(ctx)
}

func (b *localBackend) Watch(ctx context.Context, fn func(ff featureflagx.FeatureFlag, enabled bool)) error {
	return b.s.Watch(ctx, fn)
}

func (b *localBackend) Close() error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	return kvx.Close(b.storage)
}

type remoteBackend struct {
	c        *httpx.Client
	base     string
	interval time.Duration
}

func newRemoteBackend(base string, interval time.Duration) *remoteBackend {
	return &remoteBackend{
		c:        httpx.NewClientWithOptions(httpx.WithTimeout(10 * time.Second)),
		base:     strings.TrimSuffix(base, "/"),
		interval: interval,
	}
}

func (b *remoteBackend) do(ctx context.Context, method, path string, out any) error {
	return b.c.DoJSON(ctx, &httpx.Request{Method: method, URL: b.base + path}, out)
}

func (b *remoteBackend) state(ctx context.Context, method, path string) (bool, error) {
	var state featureflaghttp.FlagState
	if err := b.do(ctx, method, path, &state); err != nil {
		return false, err
	}
	return state.Enabled, nil
}

func flagPath(ff featureflagx.FeatureFlag) string {
	return strings.Replace(featureflaghttp.FlagPath, "{flag}", ff.String(), 1)
}

func (b *remoteBackend) IsEnabled(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.state(ctx, http.MethodGet, flagPath(ff))
}

func (b *remoteBackend) Enable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.state(ctx, http.MethodPost, flagPath(ff)+"/enable")
}

func (b *remoteBackend) Disable(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.state(ctx, http.MethodPost, flagPath(ff)+"/disable")
}

func (b *remoteBackend) Toggle(ctx context.Context, ff featureflagx.FeatureFlag) (bool, error) {
	return b.state(ctx, http.MethodPost, flagPath(ff)+"/toggle")
}

func (b *remoteBackend) List(ctx context.Context) (map[featureflagx.FeatureFlag]bool, error) {
	var out featureflaghttp.FlagsState
	if err := b.do(ctx, http.MethodGet, featureflaghttp.FlagsPath, &out); err != nil {
		return nil, err
	}
	return out.Flags, nil
}

func (b *remoteBackend) Stored(ctx context.Context) ([]featureflagx.FeatureFlag, error) {
	fetch := func(ctx context.Context, req persistencex.ListRequest) (*persistencex.ListResponse[featureflagx.FeatureFlag], error) {
		var page persistencex.ListResponse[featureflagx.FeatureFlag]
		err := b.c.DoJSON(ctx, &httpx.Request{
			Method:          http.MethodGet,
			URL:             b.base + featureflaghttp.StoredPath,
			QueryParameters: req.Values(),
		}, &page)
		if err != nil {
			return nil, err
		}
		return &page, nil
	}
	return persistencex.Browse(ctx, fetch, persistencex.ListRequest{PerPage: persistencex.MaxPerPage})
}

// Watch polls the known flags and reports the ones whose state changed
// since the previous poll.
func (b *remoteBackend) Watch(ctx context.Context, fn func(ff featureflagx.FeatureFlag, enabled bool)) error {
	var last map[featureflagx.FeatureFlag]bool
	return timerx.Poll(ctx, b.interval, func(ctx context.Context) error {
		current, err := b.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if last != nil {
			for ff, enabled := range current {
				if prev, ok := last[ff]; !ok || prev != enabled {
					fn(ff, enabled)
				}
			}
		}
		last = maps.Clone(current)
		return nil
	})
}

func (b *remoteBackend) Close() error {
	return nil
}
