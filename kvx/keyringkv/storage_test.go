package keyringkv

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/kvxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStorage(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := New(Options{
		Origin:       "https://rentapp.test",
		Backends:     []keyring.BackendType{keyring.FileBackend},
		FileDir:      dir,
		FilePassword: "secret",
	})
	require.NoError(t, err)
	return s
}

func TestStorage(t *testing.T) {
	kvxtest.RunStorageSuite(t, func(t *testing.T) kvx.Storage {
		return newFileStorage(t, t.TempDir())
	})
}

func TestArrayKeyring(t *testing.T) {
	kvxtest.RunStorageSuite(t, func(t *testing.T) kvx.Storage {
		return NewWithKeyring(keyring.NewArrayKeyring(nil))
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, newFileStorage(t, dir).Set(ctx, "rentapp_staff_enrollment_enabled", "true"))

	v, found, err := newFileStorage(t, dir).Get(ctx, "rentapp_staff_enrollment_enabled")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "true", v)
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errorx.IsInvalidArgumentError(err))
}
