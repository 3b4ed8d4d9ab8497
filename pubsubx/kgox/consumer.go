package kgox

import (
	"context"
	"sync"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/samber/lo"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
)

type consumer struct {
	l     *loggerx.Logger
	kopts []kgo.Opt
	scope string
	group string

	mu      sync.Mutex
	clients []*kgo.Client
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

func newConsumer(l *loggerx.Logger, kopts []kgo.Opt, scope, group string) *consumer {
	return &consumer{
		l:      l,
		kopts:  kopts,
		scope:  scope,
		group:  group,
		closed: make(chan struct{}),
	}
}

var _ pubsubx.Subscriber = (*consumer)(nil)

// Subscribe implements pubsubx.Subscriber. Offsets are committed
// automatically, a message is handed over at most once per group.
func (c *consumer) Subscribe(ctx context.Context, topics ...messagex.Topic) (<-chan *messagex.Message, error) {
	if len(topics) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one topic is required")
	}

	select {
	case <-c.closed:
		return nil, errorx.FailedPreconditionErrorf("subscriber is closed")
	default:
	}

	names := lo.Map(topics, func(t messagex.Topic, _ int) string { return t.TopicName(c.scope) })
	opts := append([]kgo.Opt{
		kgo.ConsumerGroup(c.group),
		kgo.ConsumeTopics(names...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}, c.kopts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create kafka consumer: %v", err)
	}

	c.mu.Lock()
	c.clients = append(c.clients, client)
	c.mu.Unlock()

	out := make(chan *messagex.Message)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		c.poll(ctx, client, out)
	}()

	return out, nil
}

func (c *consumer) poll(ctx context.Context, client *kgo.Client, out chan<- *messagex.Message) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.l.WithError(err).Warn(ctx, "failed to fetch records",
				attribute.String("topic", topic),
				attribute.Int("partition", int(partition)),
			)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			r := iter.Next()
			msg, err := defaultMarshaler.Unmarshal(r)
			if err != nil {
				c.l.WithError(err).Error(ctx, "failed to unmarshal record", attribute.String("topic", r.Topic))
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			}
		}
	}
}

// Close implements pubsubx.Subscriber.
func (c *consumer) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	clients := c.clients
	c.clients = nil
	c.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	c.wg.Wait()
	return nil
}
