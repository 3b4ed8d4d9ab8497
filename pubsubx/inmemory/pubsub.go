// Package inmemorypubsub delivers messages between components of a single
// process.
package inmemorypubsub

import (
	"context"
	"sync"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

const subscriptionBuffer = 64

type (
	memoryPubSub struct {
		scope string
		l     *loggerx.Logger

		mu     sync.RWMutex
		closed bool
		// groups maps a consumer group to its live subscriptions.
		groups map[string][]*subscription

		nextMu sync.Mutex
		next   map[string]int
	}
	memorySubscriber struct {
		m     *memoryPubSub
		group string
	}
	subscription struct {
		topics []string
		ch     chan *messagex.Message
		done   <-chan struct{}
	}
)

var (
	_ pubsubx.PubSub     = (*memoryPubSub)(nil)
	_ pubsubx.Publisher  = (*memoryPubSub)(nil)
	_ pubsubx.Subscriber = (*memorySubscriber)(nil)
)

func SetupInMemoryPubSub(l *loggerx.Logger, c *pubsubx.Config) (*memoryPubSub, error) {
	if l == nil {
		l = loggerx.NewDiscard()
	}
	return &memoryPubSub{
		scope:  c.Scope,
		l:      l,
		groups: make(map[string][]*subscription),
		next:   make(map[string]int),
	}, nil
}

// Close implements PubSub.
func (m *memoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// PublishSync implements Publisher. Each consumer group receives every
// message once, subscriptions of a group take turns.
func (m *memoryPubSub) PublishSync(ctx context.Context, topic messagex.Topic, messages ...*messagex.Message) (pubsubx.Errors, error) {
	errs := make(pubsubx.Errors, len(messages))

	// Delivery happens under the read lock so that subscriptions are not
	// closed while a send is pending.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		for i := range errs {
			errs[i] = errorx.FailedPreconditionErrorf("pubsub is closed")
		}
		return errs, errs.FirstNonNil()
	}

	name := topic.TopicName(m.scope)
	for i, msg := range messages {
		for _, s := range m.targets(name) {
			select {
			case s.ch <- msg.Copy():
			case <-s.done:
			case <-ctx.Done():
				errs[i] = errorx.UnavailableErrorf("failed to deliver message %s: %v", msg.ID, ctx.Err())
			}
		}
	}

	return errs, errs.FirstNonNil()
}

// targets picks one subscription of name per consumer group. m.mu must be held.
func (m *memoryPubSub) targets(name string) []*subscription {
	m.nextMu.Lock()
	defer m.nextMu.Unlock()

	out := make([]*subscription, 0, len(m.groups))
	for group, subs := range m.groups {
		subs = lo.Filter(subs, func(s *subscription, _ int) bool {
			return lo.Contains(s.topics, name)
		})
		if len(subs) == 0 {
			continue
		}
		out = append(out, subs[m.next[group]%len(subs)])
		m.next[group]++
	}
	return out
}

// Publisher implements PubSub.
func (m *memoryPubSub) Publisher() pubsubx.Publisher {
	return m
}

// Subscriber implements PubSub.
func (m *memoryPubSub) Subscriber(group string) (pubsubx.Subscriber, error) {
	if group == "" {
		return nil, errorx.InvalidArgumentErrorf("consumer group must not be empty")
	}
	return &memorySubscriber{m: m, group: group}, nil
}

// Subscribe implements Subscriber.
func (s *memorySubscriber) Subscribe(ctx context.Context, topics ...messagex.Topic) (<-chan *messagex.Message, error) {
	if len(topics) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one topic is required")
	}

	sub := &subscription{
		topics: lo.Map(topics, func(t messagex.Topic, _ int) string { return t.TopicName(s.m.scope) }),
		ch:     make(chan *messagex.Message, subscriptionBuffer),
		done:   ctx.Done(),
	}

	s.m.mu.Lock()
	if s.m.closed {
		s.m.mu.Unlock()
		return nil, errorx.FailedPreconditionErrorf("pubsub is closed")
	}
	s.m.groups[s.group] = append(s.m.groups[s.group], sub)
	s.m.mu.Unlock()

	s.m.l.Debug(ctx, "in-memory subscription started",
		attribute.String("group", s.group),
		attribute.StringSlice("topics", sub.topics),
	)

	go func() {
		<-ctx.Done()
		s.m.remove(s.group, sub)
	}()

	return sub.ch, nil
}

func (m *memoryPubSub) remove(group string, sub *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group] = lo.Without(m.groups[group], sub)
	if len(m.groups[group]) == 0 {
		delete(m.groups, group)
		m.nextMu.Lock()
		delete(m.next, group)
		m.nextMu.Unlock()
	}
	close(sub.ch)
}

// Close implements Subscriber.
func (s *memorySubscriber) Close() error {
	return nil
}
