// Package kgox publishes and consumes messages on Kafka with franz-go.
package kgox

import (
	"context"
	"errors"
	"sync"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/samber/lo"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel/attribute"
)

type PubSub struct {
	conf         *pubsubx.Config
	kopts        []kgo.Opt
	kotelService *kotel.Kotel
	writeClient  *kgo.Client
	l            *loggerx.Logger

	mu        sync.Mutex
	consumers []*consumer
}

var _ pubsubx.PubSub = (*PubSub)(nil)

func NewPubSub(ctx context.Context, l *loggerx.Logger, config *pubsubx.Config, opts *pubsubx.PubSubOptions) (*PubSub, error) {
	if l == nil {
		return nil, errorx.FailedPreconditionErrorf("logger is required")
	}

	if config.Provider != pubsubx.ProviderKafka {
		return nil, errorx.FailedPreconditionErrorf("unsupported provider %s", config.Provider)
	}

	if len(config.Providers.Kafka.Brokers) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one kafka broker is required")
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(config.Providers.Kafka.Brokers...),
		kgo.WithLogger(kslog.New(l.Logger)),
	}

	var kotelService *kotel.Kotel
	if opts != nil {
		kotelService = newKotel(opts.TracerProvider, opts.Propagator)
		kopts = append(kopts, kgo.WithHooks(kotelService.Hooks()...))
	}

	wc, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create kafka client: %v", err)
	}

	if err := wc.Ping(ctx); err != nil {
		wc.Close()
		return nil, errorx.UnavailableErrorf("kafka brokers %v are unreachable", config.Providers.Kafka.Brokers).WithOriginalError(err)
	}

	return &PubSub{
		l:            l,
		conf:         config,
		kotelService: kotelService,
		kopts:        kopts,
		writeClient:  wc,
	}, nil
}

// Close implements pubsubx.PubSub.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errs := make([]error, 0, len(p.consumers))
	for _, c := range p.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.consumers = nil
	p.writeClient.Close()

	return errors.Join(errs...)
}

// Publisher implements pubsubx.PubSub.
func (p *PubSub) Publisher() pubsubx.Publisher {
	// We can safely cast here because we know that the pubSub struct is a Publisher.
	return (*publisher)(p)
}

// Subscriber implements pubsubx.PubSub.
func (p *PubSub) Subscriber(group string) (pubsubx.Subscriber, error) {
	if group == "" {
		return nil, errorx.InvalidArgumentErrorf("consumer group must not be empty")
	}

	c := newConsumer(p.l.WithFields(attribute.String("consumer_group", group)), p.kopts, p.conf.Scope, group)

	p.mu.Lock()
	p.consumers = append(p.consumers, c)
	p.mu.Unlock()

	return c, nil
}

// CreateTopics creates the scoped topics missing on the cluster with the
// configured partitions and replication factor.
func (p *PubSub) CreateTopics(ctx context.Context, topics ...messagex.Topic) error {
	adm := kadm.NewClient(p.writeClient)
	names := lo.Map(topics, func(t messagex.Topic, _ int) string { return t.TopicName(p.conf.Scope) })

	partitions := p.conf.Providers.Kafka.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replicationFactor := p.conf.Providers.Kafka.ReplicationFactor
	if replicationFactor == 0 {
		replicationFactor = -1
	}

	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, names...)
	if err != nil {
		return errorx.UnavailableErrorf("failed to create topics %v", names).WithOriginalError(err)
	}

	errs := make([]error, 0, len(resps))
	for _, resp := range resps {
		switch {
		case resp.Err == nil:
			p.l.Info(ctx, "kafka topic created", attribute.String("topic", resp.Topic))
		case errors.Is(resp.Err, kerr.TopicAlreadyExists):
			p.l.Debug(ctx, "kafka topic already exists", attribute.String("topic", resp.Topic))
		default:
			errs = append(errs, errorx.InternalErrorf("failed to create topic %s: %v", resp.Topic, resp.Err))
		}
	}

	return errors.Join(errs...)
}
