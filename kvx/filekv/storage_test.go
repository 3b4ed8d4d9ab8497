package filekv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/kvxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStorage(t *testing.T, opts Options) *Storage {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Origin == "" {
		opts.Origin = "https://rentapp.test"
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStorage(t *testing.T) {
	kvxtest.RunStorageSuite(t, func(t *testing.T) kvx.Storage {
		return newTestStorage(t, Options{})
	})
}

func TestNew(t *testing.T) {
	t.Run("should require a directory and an origin", func(t *testing.T) {
		_, err := New(Options{Origin: "o"})
		assert.True(t, errorx.IsInvalidArgumentError(err))
		_, err = New(Options{Dir: t.TempDir()})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})

	t.Run("should create the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "dir")
		s := newTestStorage(t, Options{Dir: dir})
		assert.DirExists(t, dir)
		assert.Equal(t, filepath.Join(dir, "https___rentapp.test.json"), s.Path())
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "http___localhost_3000.json", FileName("http://localhost:3000"))
	assert.Equal(t, "rentapp.json", FileName("rentapp"))
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestStorage(t, Options{Dir: dir})
	require.NoError(t, first.Set(ctx, "rentapp_staff_enrollment_enabled", "true"))

	second := newTestStorage(t, Options{Dir: dir})
	v, found, err := second.Get(ctx, "rentapp_staff_enrollment_enabled")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "true", v)

	raw, err := os.ReadFile(second.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"rentapp_staff_enrollment_enabled":"true"}`, string(raw))

	other := newTestStorage(t, Options{Dir: dir, Origin: "https://other.test"})
	_, found, err = other.Get(ctx, "rentapp_staff_enrollment_enabled")
	require.NoError(t, err)
	assert.False(t, found, "origins must not share entries")
}

func TestNonStringValuesReadEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"flag":true,"n":1,"s":"true"}`), 0o600))

	v, found, err := s.Get(ctx, "flag")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	v, found, err = s.Get(ctx, "n")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	v, _, err = s.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestEmptyFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte("  \n"), 0o600))

	_, found, err := s.Get(ctx, "flag")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Set(ctx, "flag", "false"))
}

func TestCorruptedDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`["not","an","object"]`), 0o600))

	_, _, err := s.Get(ctx, "flag")
	assert.True(t, errorx.IsInternalError(err))
	assert.True(t, errorx.IsInternalError(s.Set(ctx, "flag", "true")))
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, Options{MaxSize: 64})

	require.NoError(t, s.Set(ctx, "small", "true"))
	err := s.Set(ctx, "big", strings.Repeat("x", 128))
	assert.True(t, errorx.IsFailedPreconditionError(err))

	_, found, err := s.Get(ctx, "big")
	require.NoError(t, err)
	assert.False(t, found, "a rejected write must leave the document untouched")
}

func TestWatchExternalChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestStorage(t, Options{})
	require.NoError(t, s.Set(ctx, "kept", "1"))
	require.NoError(t, s.Set(ctx, "removed", "1"))

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	// Another process rewrites the document.
	require.NoError(t, atomicWrite(s.Path(), []byte(`{"kept":"1","rentapp_staff_enrollment_enabled":"true"}`)))

	got := map[string]kvx.Event{}
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-events:
			got[e.Key] = e
		case <-timeout:
			t.Fatalf("missing events, got %v", got)
		}
	}

	assert.Equal(t, kvx.Event{Key: "rentapp_staff_enrollment_enabled", Value: "true", Found: true}, got["rentapp_staff_enrollment_enabled"])
	assert.Equal(t, kvx.Event{Key: "removed"}, got["removed"])
	assert.NotContains(t, got, "kept")
}
