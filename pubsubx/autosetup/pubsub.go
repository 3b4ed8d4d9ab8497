// Package autosetup builds the pubsubx.PubSub selected by configuration.
package autosetup

import (
	"context"

	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/pubsubx"
	inmemorypubsub "github.com/rentapp/x/pubsubx/inmemory"
	"github.com/rentapp/x/pubsubx/kgox"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/rentapp/x/stringsx"
	"go.opentelemetry.io/otel/attribute"
)

// New returns the configured pubsub, or nil when the provider is none.
func New(ctx context.Context, l *loggerx.Logger, c *pubsubx.Config, opts ...pubsubx.PubSubOption) (pubsubx.PubSub, error) {
	if l == nil {
		l = loggerx.NewDiscard()
	}
	return setup(ctx, l, c, pubsubx.NewPubSubOptions(opts...))
}

func setup(ctx context.Context, l *loggerx.Logger, c *pubsubx.Config, opts *pubsubx.PubSubOptions) (pubsubx.PubSub, error) {
	switch f := stringsx.SwitchExact(c.Provider); {
	case f.AddCase(pubsubx.ProviderKafka):
		ps, err := kgox.NewPubSub(ctx, l, c, opts)
		if err != nil {
			return nil, err
		}
		if c.Providers.Kafka.CreateTopics && c.Topic != "" {
			topic, err := messagex.NewTopic(c.Topic)
			if err != nil {
				_ = ps.Close()
				return nil, err
			}
			if err := ps.CreateTopics(ctx, topic); err != nil {
				_ = ps.Close()
				return nil, err
			}
		}
		l.Info(ctx, "kafka pubsub configured", attribute.StringSlice("brokers", c.Providers.Kafka.Brokers))
		return ps, nil

	case f.AddCase(pubsubx.ProviderInMemory):
		ps, err := inmemorypubsub.SetupInMemoryPubSub(l, c)
		if err != nil {
			return nil, err
		}
		l.Info(ctx, "in-memory pubsub configured, events stay in this process")
		return ps, nil

	case f.AddCase(pubsubx.ProviderNone):
		l.Debug(ctx, "no pubsub configured, flag changes are not published")
		return nil, nil

	default:
		return nil, f.ToUnknownCaseErr()
	}
}
