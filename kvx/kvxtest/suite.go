// Package kvxtest holds the behavior every kvx.Storage backend must share.
package kvxtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	// NewStorage returns an empty storage. It is called once per test.
	NewStorage func(t *testing.T) kvx.Storage

	s   kvx.Storage
	ctx context.Context
}

// RunStorageSuite runs the conformance tests against the storages built by newStorage.
func RunStorageSuite(t *testing.T, newStorage func(t *testing.T) kvx.Storage) {
	suite.Run(t, &StorageSuite{NewStorage: newStorage})
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.s = s.NewStorage(s.T())
}

func (s *StorageSuite) TestGetAbsent() {
	v, found, err := s.s.Get(s.ctx, "absent_key")
	s.Require().NoError(err)
	s.False(found)
	s.Empty(v)
}

func (s *StorageSuite) TestSetThenGet() {
	for _, v := range []string{"true", "false", "True", "1", "", "a value with spaces", "élan ✓"} {
		s.Require().NoError(s.s.Set(s.ctx, "key", v))
		got, found, err := s.s.Get(s.ctx, "key")
		s.Require().NoError(err)
		s.True(found)
		s.Equal(v, got)
	}
}

func (s *StorageSuite) TestKeysAreIndependent() {
	s.Require().NoError(s.s.Set(s.ctx, "a", "1"))
	s.Require().NoError(s.s.Set(s.ctx, "b", "2"))

	a, _, err := s.s.Get(s.ctx, "a")
	s.Require().NoError(err)
	b, _, err := s.s.Get(s.ctx, "b")
	s.Require().NoError(err)

	s.Equal("1", a)
	s.Equal("2", b)
}

func (s *StorageSuite) TestDottedKeys() {
	s.Require().NoError(s.s.Set(s.ctx, "rentapp.flags.x", "true"))
	v, found, err := s.s.Get(s.ctx, "rentapp.flags.x")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("true", v)

	_, found, err = s.s.Get(s.ctx, "rentapp")
	s.Require().NoError(err)
	s.False(found)
}

func (s *StorageSuite) TestEmptyKey() {
	_, _, err := s.s.Get(s.ctx, "")
	s.True(errorx.IsInvalidArgumentError(err), "got %v", err)
	s.True(errorx.IsInvalidArgumentError(s.s.Set(s.ctx, "", "v")))
}

func (s *StorageSuite) TestCompareAndSwap() {
	sw, ok := s.s.(kvx.Swapper)
	if !ok {
		s.T().Skip("storage does not implement kvx.Swapper")
	}

	swapped, err := sw.CompareAndSwap(s.ctx, "cas", nil, "false")
	s.Require().NoError(err)
	s.True(swapped, "absent key should swap when old is nil")

	swapped, err = sw.CompareAndSwap(s.ctx, "cas", nil, "true")
	s.Require().NoError(err)
	s.False(swapped, "present key should not swap when old is nil")

	old := "true"
	swapped, err = sw.CompareAndSwap(s.ctx, "cas", &old, "false")
	s.Require().NoError(err)
	s.False(swapped, "mismatching old value should not swap")

	old = "false"
	swapped, err = sw.CompareAndSwap(s.ctx, "cas", &old, "true")
	s.Require().NoError(err)
	s.True(swapped)

	v, _, err := s.s.Get(s.ctx, "cas")
	s.Require().NoError(err)
	s.Equal("true", v)
}

func (s *StorageSuite) TestConcurrentCompareAndSwap() {
	sw, ok := s.s.(kvx.Swapper)
	if !ok {
		s.T().Skip("storage does not implement kvx.Swapper")
	}

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			swapped, err := sw.CompareAndSwap(s.ctx, "race", nil, "true")
			s.NoError(err)
			if swapped {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, won)
}

func (s *StorageSuite) TestKeys() {
	l, ok := s.s.(kvx.Lister)
	if !ok {
		s.T().Skip("storage does not implement kvx.Lister")
	}

	s.Require().NoError(s.s.Set(s.ctx, "k1", "v"))
	s.Require().NoError(s.s.Set(s.ctx, "k2", "v"))

	keys, err := l.Keys(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"k1", "k2"}, keys)
}

func (s *StorageSuite) TestWatch() {
	w, ok := s.s.(kvx.Watcher)
	if !ok {
		s.T().Skip("storage does not implement kvx.Watcher")
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	events, err := w.Watch(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.s.Set(s.ctx, "watched", "true"))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, open := <-events:
			s.Require().True(open, "watch channel closed early")
			if e.Key != "watched" {
				continue
			}
			s.True(e.Found)
			s.Equal("true", e.Value)
			return
		case <-timeout:
			s.FailNow("no event received")
		}
	}
}
