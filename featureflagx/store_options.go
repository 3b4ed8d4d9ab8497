package featureflagx

import (
	"time"

	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/pubsubx/messagex"
	"go.opentelemetry.io/otel/trace"
)

// DefaultChangedTopic receives a FlagChanged message after every write.
const DefaultChangedTopic = messagex.Topic("feature-flag-changed")

type storeOptions struct {
	l              *loggerx.Logger
	tracerProvider trace.TracerProvider
	metrics        *metricsx.FlagMetrics
	publisher      pubsubx.Publisher
	topic          messagex.Topic
	atomicToggle   bool
	now            func() time.Time
}

type StoreOption func(*storeOptions)

func WithLogger(l *loggerx.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.l = l
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) StoreOption {
	return func(o *storeOptions) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

func WithMetrics(m *metricsx.FlagMetrics) StoreOption {
	return func(o *storeOptions) {
		o.metrics = m
	}
}

// WithPublisher publishes a FlagChanged message on topic after every
// successful write. An empty topic means DefaultChangedTopic.
func WithPublisher(p pubsubx.Publisher, topic messagex.Topic) StoreOption {
	return func(o *storeOptions) {
		o.publisher = p
		if topic != "" {
			o.topic = topic
		}
	}
}

// WithAtomicToggle makes Toggle a single atomic step. Storages implementing
// kvx.Swapper are updated with compare-and-swap, other storages are
// serialized by the store. A compare-and-swap toggle that keeps losing to
// concurrent writers gives up after 16 attempts without writing and returns
// the state it read last.
func WithAtomicToggle() StoreOption {
	return func(o *storeOptions) {
		o.atomicToggle = true
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}
