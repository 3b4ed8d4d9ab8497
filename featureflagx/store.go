package featureflagx

import (
	"context"
	"sync"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/rentapp/x/tracex"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	componentName = "featureflagx.Store"

	opIsEnabled = "is_enabled"
	opEnable    = "enable"
	opDisable   = "disable"
	opToggle    = "toggle"
	opSet       = "set"

	// maxSwapAttempts bounds the compare-and-swap loop of an atomic toggle.
	maxSwapAttempts = 16
)

// Store reads and writes boolean flags in a kvx.Storage. Nothing is cached,
// every read queries the storage.
//
// A flag that is absent, unreadable or stored as anything but "true" is
// disabled. Storage errors never reach the caller: reads degrade to false
// and writes are dropped.
type Store struct {
	storage   kvx.Storage
	l         *loggerx.Logger
	tracer    trace.Tracer
	metrics   *metricsx.FlagMetrics
	publisher pubsubx.Publisher
	topic     messagex.Topic
	now       func() time.Time

	atomicToggle bool
	toggleMu     sync.Mutex
}

// NewStore returns a store over storage. A nil storage behaves as
// kvx.Unavailable.
func NewStore(storage kvx.Storage, opts ...StoreOption) *Store {
	o := &storeOptions{
		l:              loggerx.NewDiscard(),
		tracerProvider: noop.NewTracerProvider(),
		topic:          DefaultChangedTopic,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if storage == nil {
		storage = kvx.Unavailable()
	}

	return &Store{
		storage:      storage,
		l:            o.l,
		tracer:       o.tracerProvider.Tracer("github.com/rentapp/x/featureflagx"),
		metrics:      o.metrics,
		publisher:    o.publisher,
		topic:        o.topic,
		now:          o.now,
		atomicToggle: o.atomicToggle,
	}
}

func (s *Store) instrument(ctx context.Context, name string, ff FeatureFlag) (context.Context, trace.Span, *loggerx.Logger) {
	return tracex.Instrument(ctx, s.l, s.tracer, componentName, name,
		trace.WithAttributes(attribute.String("flag", ff.String())),
	)
}

// IsEnabled reports whether ff is stored as enabled.
func (s *Store) IsEnabled(ctx context.Context, ff FeatureFlag) bool {
	ctx, span, l := s.instrument(ctx, "IsEnabled", ff)
	defer span.End()

	enabled, _, _ := s.read(ctx, l, span, ff, opIsEnabled)
	s.metrics.Observe(ctx, ff.String(), opIsEnabled, enabled)
	span.SetAttributes(attribute.Bool("enabled", enabled))
	return enabled
}

func (s *Store) Enable(ctx context.Context, ff FeatureFlag) {
	ctx, span, l := s.instrument(ctx, "Enable", ff)
	defer span.End()

	s.write(ctx, l, span, ff, true, opEnable)
}

func (s *Store) Disable(ctx context.Context, ff FeatureFlag) {
	ctx, span, l := s.instrument(ctx, "Disable", ff)
	defer span.End()

	s.write(ctx, l, span, ff, false, opDisable)
}

// Set enables or disables ff.
func (s *Store) Set(ctx context.Context, ff FeatureFlag, enabled bool) {
	ctx, span, l := s.instrument(ctx, "Set", ff)
	defer span.End()

	s.write(ctx, l, span, ff, enabled, opSet)
}

// Toggle flips ff and returns its new state. Unless the store was built
// WithAtomicToggle, this is a read followed by a write and concurrent
// toggles may be lost.
func (s *Store) Toggle(ctx context.Context, ff FeatureFlag) bool {
	ctx, span, l := s.instrument(ctx, "Toggle", ff)
	defer span.End()

	var enabled bool
	switch swapper, ok := s.storage.(kvx.Swapper); {
	case s.atomicToggle && ok:
		enabled = s.swapToggle(ctx, l, span, ff, swapper)
	case s.atomicToggle:
		s.toggleMu.Lock()
		enabled = s.plainToggle(ctx, l, span, ff)
		s.toggleMu.Unlock()
	default:
		enabled = s.plainToggle(ctx, l, span, ff)
	}

	span.SetAttributes(attribute.Bool("enabled", enabled))
	return enabled
}

func (s *Store) plainToggle(ctx context.Context, l *loggerx.Logger, span trace.Span, ff FeatureFlag) bool {
	current, _, _ := s.read(ctx, l, span, ff, opToggle)
	s.write(ctx, l, span, ff, !current, opToggle)
	return !current
}

func (s *Store) swapToggle(ctx context.Context, l *loggerx.Logger, span trace.Span, ff FeatureFlag, swapper kvx.Swapper) bool {
	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		current, raw, ok := s.read(ctx, l, span, ff, opToggle)
		if !ok {
			// Same outcome as a plain toggle on a failing storage.
			s.write(ctx, l, span, ff, !current, opToggle)
			return !current
		}

		next := BoolFeatureFlagValue(!current)
		swapped, err := swapper.CompareAndSwap(ctx, ff.String(), raw, next.String())
		if err != nil {
			s.fail(ctx, l, span, ff, opToggle, err)
			return next.IsEnabled()
		}
		if swapped {
			s.written(ctx, l, ff, next.IsEnabled(), opToggle)
			return next.IsEnabled()
		}

		l.Debug(ctx, "flag changed concurrently, retrying toggle", attribute.Int("attempt", attempt))
	}

	l.Warn(ctx, "toggle gave up after repeated concurrent changes", attribute.Int("attempts", maxSwapAttempts))
	enabled, _, _ := s.read(ctx, l, span, ff, opToggle)
	return enabled
}

// read returns the decoded state of ff, the raw stored value (nil when
// absent) and whether the storage answered.
func (s *Store) read(ctx context.Context, l *loggerx.Logger, span trace.Span, ff FeatureFlag, op string) (bool, *string, bool) {
	v, found, err := s.storage.Get(ctx, ff.String())
	if err != nil {
		s.fail(ctx, l, span, ff, op, err)
		return false, nil, false
	}
	if !found {
		return false, nil, true
	}
	return ParseValue(v).IsEnabled(), &v, true
}

func (s *Store) write(ctx context.Context, l *loggerx.Logger, span trace.Span, ff FeatureFlag, enabled bool, op string) {
	if err := s.storage.Set(ctx, ff.String(), BoolFeatureFlagValue(enabled).String()); err != nil {
		s.fail(ctx, l, span, ff, op, err)
		return
	}
	s.written(ctx, l, ff, enabled, op)
}

func (s *Store) written(ctx context.Context, l *loggerx.Logger, ff FeatureFlag, enabled bool, op string) {
	s.metrics.Observe(ctx, ff.String(), op, enabled)
	l.Info(ctx, "feature flag written", attribute.Bool("enabled", enabled))
	s.publish(ctx, l, ff, enabled)
}

// fail swallows a storage error. An unavailable storage is expected and
// stays quiet.
func (s *Store) fail(ctx context.Context, l *loggerx.Logger, span trace.Span, ff FeatureFlag, op string, err error) {
	if kvx.IsUnavailable(err) {
		l.Debug(ctx, "storage unavailable, using the disabled default", attribute.String("operation", op))
		return
	}

	s.metrics.Failure(ctx, ff.String(), op)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.WithError(err).Warn(ctx, "feature flag storage failed, using the disabled default", attribute.String("operation", op))
}

func (s *Store) publish(ctx context.Context, l *loggerx.Logger, ff FeatureFlag, enabled bool) {
	if s.publisher == nil {
		return
	}

	snapshot := s.snapshot(ctx, l)
	msg, err := FlagChanged{Flag: ff, Enabled: enabled, ChangedAt: s.now().UTC()}.toMessage(snapshot)
	if err != nil {
		l.WithError(err).Error(ctx, "failed to build flag change message")
		return
	}
	msg.InjectTraceContext(ctx)

	if _, err := s.publisher.PublishSync(ctx, s.topic, msg); err != nil {
		l.WithError(err).Warn(ctx, "failed to publish flag change", attribute.String("topic", string(s.topic)))
	}
}

// Snapshot returns the state of every known flag.
func (s *Store) Snapshot(ctx context.Context) *FeatureFlags {
	ctx, span, l := tracex.Instrument(ctx, s.l, s.tracer, componentName, "Snapshot")
	defer span.End()

	return s.snapshot(ctx, l)
}

func (s *Store) snapshot(ctx context.Context, l *loggerx.Logger) *FeatureFlags {
	span := trace.SpanFromContext(ctx)
	fs := make(map[string]bool, len(known))
	for _, ff := range known {
		fs[ff.String()], _, _ = s.read(ctx, l, span, ff, opIsEnabled)
	}
	// Only known flags are set, validation cannot fail.
	ffs, _ := New(fs, known)
	return ffs
}

// Stored lists the flags present in the storage, known or not.
func (s *Store) Stored(ctx context.Context) ([]FeatureFlag, error) {
	lister, ok := s.storage.(kvx.Lister)
	if !ok {
		return nil, errorx.UnimplementedErrorf("storage cannot list its keys")
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FeatureFlag, len(keys))
	for i, k := range keys {
		out[i] = FeatureFlag(k)
	}
	return out, nil
}

// Watch calls fn with the new state of every flag changed in the storage,
// including changes made by other processes, until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(ff FeatureFlag, enabled bool)) error {
	w, ok := s.storage.(kvx.Watcher)
	if !ok {
		return errorx.UnimplementedErrorf("storage cannot report changes")
	}

	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	for ev := range events {
		enabled := ev.Found && ParseValue(ev.Value).IsEnabled()
		s.metrics.Observe(ctx, ev.Key, "watch", enabled)
		fn(FeatureFlag(ev.Key), enabled)
	}
	return nil
}

// Flag returns a handle on a single flag.
func (s *Store) Flag(ff FeatureFlag) *Flag {
	return &Flag{s: s, ff: ff}
}

// StaffEnrollment returns the handle on the StaffEnrollment flag.
func (s *Store) StaffEnrollment() *Flag {
	return s.Flag(StaffEnrollment)
}
