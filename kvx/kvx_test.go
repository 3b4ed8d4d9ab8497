package kvx

import (
	"context"
	"testing"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	s := Unavailable()

	_, found, err := s.Get(ctx, "k")
	assert.False(t, found)
	assert.True(t, IsUnavailable(err))

	assert.True(t, IsUnavailable(s.Set(ctx, "k", "v")))

	ok, err := s.(Swapper).CompareAndSwap(ctx, "k", nil, "v")
	assert.False(t, ok)
	assert.True(t, IsUnavailable(err))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("rentapp_staff_enrollment_enabled"))
	assert.True(t, errorx.IsInvalidArgumentError(ValidateKey("")))
}

func TestBroadcaster(t *testing.T) {
	t.Run("should deliver events to every watcher", func(t *testing.T) {
		var b Broadcaster
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w1, err := b.Watch(ctx)
		require.NoError(t, err)
		w2, err := b.Watch(ctx)
		require.NoError(t, err)

		e := Event{Key: "k", Value: "true", Found: true}
		b.Broadcast(e)

		assert.Equal(t, e, <-w1)
		assert.Equal(t, e, <-w2)
	})

	t.Run("should close the channel when the context is done", func(t *testing.T) {
		var b Broadcaster
		ctx, cancel := context.WithCancel(context.Background())
		w, err := b.Watch(ctx)
		require.NoError(t, err)

		cancel()
		select {
		case _, ok := <-w:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("watch channel was not closed")
		}
	})

	t.Run("should close every channel on close", func(t *testing.T) {
		var b Broadcaster
		w, err := b.Watch(context.Background())
		require.NoError(t, err)

		b.Close()
		b.Close()
		_, ok := <-w
		assert.False(t, ok)

		late, err := b.Watch(context.Background())
		require.NoError(t, err)
		_, ok = <-late
		assert.False(t, ok)
	})

	t.Run("should not block on slow watchers", func(t *testing.T) {
		var b Broadcaster
		defer b.Close()
		_, err := b.Watch(context.Background())
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			for i := 0; i < watchBufferSize*4; i++ {
				b.Broadcast(Event{Key: "k"})
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked")
		}
	})
}
