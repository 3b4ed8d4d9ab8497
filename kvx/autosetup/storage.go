// Package autosetup builds the kvx.Storage selected by configuration.
package autosetup

import (
	"context"
	"time"

	"github.com/99designs/keyring"
	"github.com/inhies/go-bytesize"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rentapp/x/arangox"
	"github.com/rentapp/x/elasticx"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/arangokv"
	"github.com/rentapp/x/kvx/elastickv"
	"github.com/rentapp/x/kvx/filekv"
	inmemorykv "github.com/rentapp/x/kvx/inmemory"
	"github.com/rentapp/x/kvx/keyringkv"
	"github.com/rentapp/x/kvx/sqlkv"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/retryx"
	"github.com/rentapp/x/stringsx"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultConnectTimeout = 10 * time.Second

// NewStorage builds the storage of origin described by c. Network backends
// are retried with an exponential backoff until c.ConnectTimeout elapses.
// When the backend cannot be set up and c.FallbackToUnavailable is set,
// kvx.Unavailable is returned instead of the error.
func NewStorage(ctx context.Context, l *loggerx.Logger, origin string, c *Config) (kvx.Storage, error) {
	if l == nil {
		l = loggerx.NewDiscard()
	}
	l = l.WithFields(attribute.String("storage_provider", c.Provider), attribute.String("origin", origin))

	s, err := setup(ctx, l, origin, c)
	if err == nil {
		return s, nil
	}
	if c.FallbackToUnavailable && !errorx.IsInvalidArgumentError(err) {
		l.WithError(err).Warn(ctx, "storage could not be set up, every flag reads as disabled and writes are dropped")
		return kvx.Unavailable(), nil
	}
	return nil, err
}

func setup(ctx context.Context, l *loggerx.Logger, origin string, c *Config) (kvx.Storage, error) {
	switch f := stringsx.SwitchExact(c.Provider); {
	case f.AddCase(ProviderMemory):
		l.Info(ctx, "in-memory storage configured, flag values are lost on exit")
		return inmemorykv.New(), nil

	case f.AddCase(ProviderFile):
		dir, err := homedir.Expand(c.File.Dir)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		maxSize, err := parseSize(c.File.MaxSize)
		if err != nil {
			return nil, err
		}
		s, err := filekv.New(filekv.Options{Dir: dir, Origin: origin, MaxSize: maxSize, Logger: l})
		if err != nil {
			return nil, err
		}
		l.Info(ctx, "file storage configured", attribute.String("path", s.Path()))
		return s, nil

	case f.AddCase(ProviderSQLite):
		dsn, err := homedir.Expand(c.SQLite.DSN)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return connect(ctx, l, c, func(ctx context.Context) (kvx.Storage, error) {
			return sqlkv.Open(ctx, dsn, origin)
		})

	case f.AddCase(ProviderArango):
		return connect(ctx, l, c, func(ctx context.Context) (kvx.Storage, error) {
			return arangokv.New(ctx, arangokv.Options{
				ClientConfig: arangox.ClientConfig{
					Endpoints: c.Arango.Endpoints,
					Username:  c.Arango.Username,
					Password:  c.Arango.Password,
				},
				Database:   c.Arango.Database,
				Collection: c.Arango.Collection,
				Origin:     origin,
				Logger:     l,
			})
		})

	case f.AddCase(ProviderElastic):
		return connect(ctx, l, c, func(ctx context.Context) (kvx.Storage, error) {
			return elastickv.New(ctx, elastickv.Options{
				Config: elasticx.Config{
					Addresses: c.Elastic.Addresses,
					Username:  c.Elastic.Username,
					Password:  c.Elastic.Password,
				},
				Index:  c.Elastic.Index,
				Origin: origin,
			})
		})

	case f.AddCase(ProviderKeyring):
		dir, err := homedir.Expand(c.Keyring.Dir)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		backends := make([]keyring.BackendType, 0, len(c.Keyring.Backends))
		for _, b := range c.Keyring.Backends {
			backends = append(backends, keyring.BackendType(b))
		}
		return keyringkv.New(keyringkv.Options{
			Origin:       origin,
			Backends:     backends,
			FileDir:      dir,
			FilePassword: c.Keyring.Password,
		})

	case f.AddCase(ProviderNone):
		l.Warn(ctx, "no storage configured, every flag reads as disabled")
		return kvx.Unavailable(), nil

	default:
		return nil, f.ToUnknownCaseErr()
	}
}

// connect retries open while the backend reports itself unavailable.
func connect(ctx context.Context, l *loggerx.Logger, c *Config, open func(ctx context.Context) (kvx.Storage, error)) (kvx.Storage, error) {
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		s        kvx.Storage
		attempts int
	)
	err := retryx.ExponentialRetry(ctx, func() error {
		attempts++
		var err error
		s, err = open(ctx)
		if err != nil {
			l.WithError(err).Debug(ctx, "storage backend not ready", attribute.Int("attempt", attempts))
		}
		return err
	},
		retryx.WithMaxElapsedTime(timeout),
		retryx.WithRetryCount(1000),
		retryx.RetryIf(kvx.IsUnavailable),
	)
	if err != nil {
		return nil, err
	}

	l.Info(ctx, "storage backend connected", attribute.Int("attempts", attempts))
	return s, nil
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return filekv.DefaultMaxSize, nil
	}
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, errorx.InvalidArgumentErrorf("invalid size %q: %v", s, err)
	}
	return int64(b), nil
}
