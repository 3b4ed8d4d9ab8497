// Package keyringkv keeps entries in the operating system keyring, one
// keyring service per origin.
package keyringkv

import (
	"context"
	"sort"
	"sync"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
)

type Options struct {
	Origin string
	// Backends restricts the keyring backends to try, in order. Empty means
	// every backend available on the platform.
	Backends []keyring.BackendType
	// FileDir and FilePassword configure the encrypted file backend.
	FileDir      string
	FilePassword string
}

type Storage struct {
	ring keyring.Keyring
	// mu makes CompareAndSwap atomic for the writers of this process.
	mu sync.Mutex
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
)

func New(opts Options) (*Storage, error) {
	if opts.Origin == "" {
		return nil, errorx.InvalidArgumentErrorf("keyringkv: an origin is required")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      opts.Origin,
		AllowedBackends:  opts.Backends,
		FileDir:          opts.FileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(opts.FilePassword),
	})
	if errors.Is(err, keyring.ErrNoAvailImpl) {
		return nil, errorx.UnavailableErrorf("keyringkv: no keyring backend available").WithOriginalError(err)
	} else if err != nil {
		return nil, errors.WithStack(err)
	}

	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Storage {
	return &Storage{ring: ring}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return "", false, err
	}

	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.WithStack(err)
	}
	return string(item.Data), true, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}
	return errors.WithStack(s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: key,
	}))
}

func (s *Storage) CompareAndSwap(ctx context.Context, key string, old *string, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if (old == nil && found) || (old != nil && (!found || cur != *old)) {
		return false, nil
	}
	return true, s.Set(ctx, key, next)
}

func (s *Storage) Keys(context.Context) ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out, nil
}
