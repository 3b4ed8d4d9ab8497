package inmemorykv

import (
	"context"
	"sort"
	"sync"

	"github.com/rentapp/x/kvx"
)

// Storage is a process-local kvx.Storage. Its content is lost on exit.
type Storage struct {
	kvx.Broadcaster

	mu      sync.RWMutex
	entries map[string]string
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
	_ kvx.Watcher = (*Storage)(nil)
)

func New() *Storage {
	return &Storage{entries: map[string]string{}}
}

// NewWithEntries returns a storage seeded with a copy of entries.
func NewWithEntries(entries map[string]string) *Storage {
	s := New()
	for k, v := range entries {
		s.entries[k] = v
	}
	return s
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()

	s.Broadcast(kvx.Event{Key: key, Value: value, Found: true})
	return nil
}

func (s *Storage) CompareAndSwap(_ context.Context, key string, old *string, next string) (bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	cur, ok := s.entries[key]
	if (old == nil && ok) || (old != nil && (!ok || cur != *old)) {
		s.mu.Unlock()
		return false, nil
	}
	s.entries[key] = next
	s.mu.Unlock()

	s.Broadcast(kvx.Event{Key: key, Value: next, Found: true})
	return true, nil
}

func (s *Storage) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key. Used by tests to reset a flag to its absent state.
func (s *Storage) Delete(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	s.Broadcast(kvx.Event{Key: key})
}
