// Package kvx defines the synchronous key-value persistence surface the
// feature flag store reads and writes, along with the optional capabilities a
// backend may offer.
package kvx

import (
	"context"
	"io"

	"github.com/rentapp/x/errorx"
)

// ErrUnavailable is returned by storages that cannot be reached or do not
// exist in the current environment.
var ErrUnavailable = errorx.UnavailableErrorf("storage surface is unavailable")

// Storage is a string to string map scoped to one application origin.
type Storage interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, creating the entry if needed.
	Set(ctx context.Context, key, value string) error
}

// Swapper is implemented by storages able to replace a value atomically.
type Swapper interface {
	// CompareAndSwap stores next under key only if the current value equals
	// *old, or if the key is absent when old is nil. It reports whether the
	// swap happened.
	CompareAndSwap(ctx context.Context, key string, old *string, next string) (bool, error)
}

// Lister is implemented by storages able to enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Watcher is implemented by storages able to report changes, including the
// ones made by other processes sharing the same surface.
type Watcher interface {
	// Watch returns a channel of changes closed once ctx is done.
	Watch(ctx context.Context) (<-chan Event, error)
}

// Event describes the new state of a key.
type Event struct {
	Key   string
	Value string
	Found bool
}

func ValidateKey(key string) error {
	if key == "" {
		return errorx.InvalidArgumentErrorf("storage key must not be empty")
	}
	return nil
}

func IsUnavailable(err error) bool {
	return errorx.IsUnavailableError(err)
}

// Close releases the resources held by s when it has any.
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
