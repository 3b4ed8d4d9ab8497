package kvx

import (
	"context"
	"sync"
)

const watchBufferSize = 16

// Broadcaster fans events out to the channels handed by Watch. Backends
// embed it to implement Watcher. Slow receivers miss events instead of
// blocking writers.
type Broadcaster struct {
	once   sync.Once
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed chan struct{}
}

func (b *Broadcaster) init() {
	b.once.Do(func() {
		b.subs = map[chan Event]struct{}{}
		b.closed = make(chan struct{})
	})
}

func (b *Broadcaster) Watch(ctx context.Context) (<-chan Event, error) {
	b.init()
	ch := make(chan Event, watchBufferSize)

	b.mu.Lock()
	select {
	case <-b.closed:
		b.mu.Unlock()
		close(ch)
		return ch, nil
	default:
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.closed:
		}
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

func (b *Broadcaster) Broadcast(e Event) {
	b.init()
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close releases every watcher; their channels get closed.
func (b *Broadcaster) Close() {
	b.init()
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
}
