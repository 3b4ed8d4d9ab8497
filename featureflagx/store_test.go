package featureflagx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/filekv"
	inmemorykv "github.com/rentapp/x/kvx/inmemory"
	"github.com/rentapp/x/kvx/keyringkv"
	"github.com/rentapp/x/kvx/sqlkv"
	loggerxtest "github.com/rentapp/x/loggerx/test"
	"github.com/rentapp/x/pubsubx"
	inmemorypubsub "github.com/rentapp/x/pubsubx/inmemory"
	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The keyring secret-service backend keeps a session bus connection
	// open for the life of the process.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/godbus/dbus.(*Conn).inWorker"))
}

// StoreSuite checks the flag semantics against a storage backend.
type StoreSuite struct {
	suite.Suite
	newStorage func(t *testing.T) kvx.Storage

	storage kvx.Storage
	store   *Store
	ctx     context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = s.newStorage(s.T())
	s.store = NewStore(s.storage)
}

func (s *StoreSuite) stored() (string, bool) {
	v, found, err := s.storage.Get(s.ctx, StaffEnrollment.String())
	s.Require().NoError(err)
	return v, found
}

func (s *StoreSuite) TestDisabledByDefault() {
	s.False(s.store.IsEnabled(s.ctx, StaffEnrollment))
	_, found := s.stored()
	s.False(found, "reading must not create the key")
}

func (s *StoreSuite) TestEnable() {
	for _, prior := range []string{"", ValueEnabled, ValueDisabled, "garbage"} {
		if prior != "" {
			s.Require().NoError(s.storage.Set(s.ctx, StaffEnrollment.String(), prior))
		}
		s.store.Enable(s.ctx, StaffEnrollment)
		s.True(s.store.IsEnabled(s.ctx, StaffEnrollment), "prior %q", prior)

		v, found := s.stored()
		s.True(found)
		s.Equal("true", v)
	}
}

func (s *StoreSuite) TestDisable() {
	for _, prior := range []string{"", ValueEnabled, ValueDisabled, "garbage"} {
		if prior != "" {
			s.Require().NoError(s.storage.Set(s.ctx, StaffEnrollment.String(), prior))
		}
		s.store.Disable(s.ctx, StaffEnrollment)
		s.False(s.store.IsEnabled(s.ctx, StaffEnrollment), "prior %q", prior)

		v, found := s.stored()
		s.True(found)
		s.Equal("false", v)
	}
}

func (s *StoreSuite) TestSet() {
	s.store.Set(s.ctx, StaffEnrollment, true)
	s.True(s.store.IsEnabled(s.ctx, StaffEnrollment))
	s.store.Set(s.ctx, StaffEnrollment, false)
	s.False(s.store.IsEnabled(s.ctx, StaffEnrollment))
}

func (s *StoreSuite) TestExactMatch() {
	for _, v := range []string{"True", "TRUE", "1", "false", "yes", " true", "true\n", ""} {
		s.Require().NoError(s.storage.Set(s.ctx, StaffEnrollment.String(), v))
		s.False(s.store.IsEnabled(s.ctx, StaffEnrollment), "value %q", v)
	}
}

func (s *StoreSuite) TestToggleIsAnInvolution() {
	for _, enabled := range []bool{false, true} {
		s.store.Set(s.ctx, StaffEnrollment, enabled)
		before, _ := s.stored()

		s.Equal(!enabled, s.store.Toggle(s.ctx, StaffEnrollment))
		s.Equal(enabled, s.store.Toggle(s.ctx, StaffEnrollment))

		after, _ := s.stored()
		s.Equal(before, after)
	}
}

func (s *StoreSuite) TestToggleMalformedValue() {
	s.Require().NoError(s.storage.Set(s.ctx, StaffEnrollment.String(), "True"))
	s.True(s.store.Toggle(s.ctx, StaffEnrollment))
	v, _ := s.stored()
	s.Equal("true", v)
}

func (s *StoreSuite) TestScenario() {
	flag := s.store.StaffEnrollment()

	s.False(flag.IsEnabled(s.ctx))

	flag.Enable(s.ctx)
	v, _ := s.stored()
	s.Equal("true", v)
	s.True(flag.IsEnabled(s.ctx))

	s.False(flag.Toggle(s.ctx))
	v, _ = s.stored()
	s.Equal("false", v)

	s.True(flag.Toggle(s.ctx))
	v, _ = s.stored()
	s.Equal("true", v)
}

func (s *StoreSuite) TestAtomicToggle() {
	store := NewStore(s.storage, WithAtomicToggle())

	s.True(store.Toggle(s.ctx, StaffEnrollment))
	s.False(store.Toggle(s.ctx, StaffEnrollment))
	v, _ := s.stored()
	s.Equal("false", v)
}

func TestStoreBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) kvx.Storage{
		"inmemory": func(t *testing.T) kvx.Storage {
			return inmemorykv.New()
		},
		"file": func(t *testing.T) kvx.Storage {
			s, err := filekv.New(filekv.Options{Dir: t.TempDir(), Origin: "https://rentapp.test"})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"sqlite": func(t *testing.T) kvx.Storage {
			s, err := sqlkv.Open(context.Background(), filepath.Join(t.TempDir(), "flags.db"), "https://rentapp.test")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"keyring": func(t *testing.T) kvx.Storage {
			return keyringkv.NewWithKeyring(keyring.NewArrayKeyring(nil))
		},
	}

	for name, newStorage := range backends {
		t.Run(name, func(t *testing.T) {
			suite.Run(t, &StoreSuite{newStorage: newStorage})
		})
	}
}

// failingStorage fails every call with err.
type failingStorage struct {
	err error
}

func (f failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func (f failingStorage) Set(context.Context, string, string) error {
	return f.err
}

// plainStorage hides the optional capabilities of the wrapped storage.
type plainStorage struct {
	kvx.Storage
}

// conflictingStorage never wins a compare-and-swap.
type conflictingStorage struct {
	*inmemorykv.Storage
	attempts int
}

func (c *conflictingStorage) CompareAndSwap(context.Context, string, *string, string) (bool, error) {
	c.attempts++
	return false, nil
}

func TestStoreIgnoresJSONBooleans(t *testing.T) {
	ctx := context.Background()
	s, err := filekv.New(filekv.Options{Dir: t.TempDir(), Origin: "https://rentapp.test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"rentapp_staff_enrollment_enabled":true}`), 0o600))

	store := NewStore(s)
	assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
	assert.True(t, store.Toggle(ctx, StaffEnrollment))

	v, _, err := s.Get(ctx, StaffEnrollment.String())
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()

	for name, store := range map[string]*Store{
		"nil storage":          NewStore(nil),
		"unavailable":          NewStore(kvx.Unavailable()),
		"unavailable (atomic)": NewStore(kvx.Unavailable(), WithAtomicToggle()),
	} {
		t.Run(name, func(t *testing.T) {
			l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
			store.l = l

			assert.NotPanics(t, func() {
				assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
				store.Enable(ctx, StaffEnrollment)
				assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
				store.Disable(ctx, StaffEnrollment)
				// The read degrades to false, the flip to true is dropped.
				assert.True(t, store.Toggle(ctx, StaffEnrollment))
				assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
			})
			assert.NotContains(t, buf.String(), `"level":"WARN"`)
		})
	}
}

func TestStoreStorageFailure(t *testing.T) {
	ctx := context.Background()
	l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
	store := NewStore(failingStorage{err: errors.New("connection reset")}, WithLogger(l))

	assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
	store.Enable(ctx, StaffEnrollment)
	assert.True(t, store.Toggle(ctx, StaffEnrollment))

	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), `"component":"featureflagx.Store.Enable"`)
}

func TestStoreAtomicToggle(t *testing.T) {
	ctx := context.Background()
	// No toggle can lose more swaps than there are other toggles.
	const toggles = maxSwapAttempts

	for name, storage := range map[string]kvx.Storage{
		"compare and swap": inmemorykv.New(),
		"mutex":            plainStorage{inmemorykv.New()},
	} {
		t.Run(name, func(t *testing.T) {
			store := NewStore(storage, WithAtomicToggle())

			var wg sync.WaitGroup
			for range toggles {
				wg.Add(1)
				go func() {
					defer wg.Done()
					store.Toggle(ctx, StaffEnrollment)
				}()
			}
			wg.Wait()

			// An even number of toggles lands back on the initial state.
			assert.False(t, store.IsEnabled(ctx, StaffEnrollment))
			v, found, err := storage.Get(ctx, StaffEnrollment.String())
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "false", v)
		})
	}

	t.Run("should give up on endless conflicts", func(t *testing.T) {
		storage := &conflictingStorage{Storage: inmemorykv.New()}
		require.NoError(t, storage.Set(ctx, StaffEnrollment.String(), "true"))
		store := NewStore(storage, WithAtomicToggle())

		// The stored state is reported as is, nothing is written.
		assert.True(t, store.Toggle(ctx, StaffEnrollment))
		assert.Equal(t, maxSwapAttempts, storage.attempts)
		v, _, err := storage.Get(ctx, StaffEnrollment.String())
		require.NoError(t, err)
		assert.Equal(t, "true", v)
	})

	t.Run("should not use compare and swap by default", func(t *testing.T) {
		storage := &conflictingStorage{Storage: inmemorykv.New()}
		store := NewStore(storage)

		assert.True(t, store.Toggle(ctx, StaffEnrollment))
		assert.Zero(t, storage.attempts)
	})
}

type failingPublisher struct{}

func (failingPublisher) PublishSync(_ context.Context, _ messagex.Topic, msgs ...*messagex.Message) (pubsubx.Errors, error) {
	errs := make(pubsubx.Errors, len(msgs))
	for i := range errs {
		errs[i] = errorx.UnavailableErrorf("broker down")
	}
	return errs, errs.FirstNonNil()
}

func (failingPublisher) Close() error { return nil }

func TestStorePublish(t *testing.T) {
	changedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("should publish every write", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ps, err := inmemorypubsub.SetupInMemoryPubSub(nil, &pubsubx.Config{Scope: "test"})
		require.NoError(t, err)
		sub, err := ps.Subscriber("test")
		require.NoError(t, err)
		ch, err := sub.Subscribe(ctx, DefaultChangedTopic)
		require.NoError(t, err)

		store := NewStore(inmemorykv.New(),
			WithPublisher(ps.Publisher(), ""),
			withClock(func() time.Time { return changedAt }),
		)
		store.Enable(ctx, StaffEnrollment)
		store.Toggle(ctx, StaffEnrollment)

		for _, expected := range []bool{true, false} {
			msg := <-ch
			e, err := ParseFlagChanged(msg)
			require.NoError(t, err)
			assert.Equal(t, FlagChanged{Flag: StaffEnrollment, Enabled: expected, ChangedAt: changedAt}, e)
			assert.Equal(t, StaffEnrollment.String(), msg.Metadata[FlagHeaderKey])

			ffs, ok, err := FromMessage(msg)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, expected, ffs.IsEnabled(StaffEnrollment))
		}
	})

	t.Run("should not publish dropped writes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ps, err := inmemorypubsub.SetupInMemoryPubSub(nil, &pubsubx.Config{})
		require.NoError(t, err)
		sub, err := ps.Subscriber("test")
		require.NoError(t, err)
		ch, err := sub.Subscribe(ctx, DefaultChangedTopic)
		require.NoError(t, err)

		NewStore(nil, WithPublisher(ps.Publisher(), "")).Enable(ctx, StaffEnrollment)

		select {
		case msg := <-ch:
			assert.Failf(t, "unexpected message", "%s", msg.Payload)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("should keep the write when publishing fails", func(t *testing.T) {
		ctx := context.Background()
		l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
		store := NewStore(inmemorykv.New(), WithLogger(l), WithPublisher(failingPublisher{}, "custom"))

		store.Enable(ctx, StaffEnrollment)
		assert.True(t, store.IsEnabled(ctx, StaffEnrollment))
		assert.Contains(t, buf.String(), "failed to publish flag change")
		assert.Contains(t, buf.String(), `"topic":"custom"`)
	})
}

func TestParseFlagChanged(t *testing.T) {
	_, err := ParseFlagChanged(messagex.NewMessage([]byte("nope")))
	assert.True(t, errorx.IsInvalidArgumentError(err))

	_, err = ParseFlagChanged(messagex.NewMessage([]byte(`{"enabled":true}`)))
	assert.True(t, errorx.IsInvalidArgumentError(err))
}

func TestStoreTracing(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(ctx) }()

	store := NewStore(failingStorage{err: errors.New("boom")}, WithTracerProvider(tp))
	store.IsEnabled(ctx, StaffEnrollment)
	store.Enable(ctx, StaffEnrollment)
	store.Disable(ctx, StaffEnrollment)
	store.Set(ctx, StaffEnrollment, true)
	store.Toggle(ctx, StaffEnrollment)

	spans := recorder.Ended()
	require.Len(t, spans, 5)

	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
		assert.NotEmpty(t, span.Events(), "the storage error is recorded on %s", span.Name())
	}
	assert.Equal(t, []string{
		"featureflagx.Store.IsEnabled",
		"featureflagx.Store.Enable",
		"featureflagx.Store.Disable",
		"featureflagx.Store.Set",
		"featureflagx.Store.Toggle",
	}, names)
}

func TestStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewStore(inmemorykv.NewWithEntries(map[string]string{
		StaffEnrollment.String(): "true",
		"unrelated":              "true",
	}))

	ffs := store.Snapshot(ctx)
	assert.True(t, ffs.IsEnabled(StaffEnrollment))
	assert.Len(t, ffs.GetFlags(), len(Known()))

	raw, err := ffs.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"rentapp_staff_enrollment_enabled":true}`, string(raw))
}

func TestStoreStored(t *testing.T) {
	ctx := context.Background()

	store := NewStore(inmemorykv.NewWithEntries(map[string]string{
		StaffEnrollment.String(): "false",
		"legacy_flag":            "true",
	}))
	ffs, err := store.Stored(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []FeatureFlag{StaffEnrollment, "legacy_flag"}, ffs)

	_, err = NewStore(plainStorage{inmemorykv.New()}).Stored(ctx)
	assert.True(t, errorx.IsUnimplementedError(err))
}

func TestStoreWatch(t *testing.T) {
	t.Run("should forward storage changes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		storage := inmemorykv.New()
		store := NewStore(storage)

		type change struct {
			ff      FeatureFlag
			enabled bool
		}
		changes := make(chan change, 64)
		done := make(chan error)
		go func() {
			done <- store.Watch(ctx, func(ff FeatureFlag, enabled bool) {
				changes <- change{ff, enabled}
			})
		}()

		// Another writer sharing the storage.
		other := NewStore(storage)
		assert.Eventually(t, func() bool {
			other.Enable(ctx, StaffEnrollment)
			select {
			case c := <-changes:
				return c == change{StaffEnrollment, true}
			case <-time.After(10 * time.Millisecond):
				return false
			}
		}, time.Second, 20*time.Millisecond)

		require.NoError(t, storage.Set(ctx, StaffEnrollment.String(), "True"))
		assert.Eventually(t, func() bool {
			select {
			case c := <-changes:
				return c == change{StaffEnrollment, false}
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("should report storages without change events", func(t *testing.T) {
		err := NewStore(plainStorage{inmemorykv.New()}).Watch(context.Background(), func(FeatureFlag, bool) {})
		assert.True(t, errorx.IsUnimplementedError(err))
	})
}
