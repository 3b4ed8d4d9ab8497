package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rentapp/x/configx"
	"github.com/rentapp/x/kvx/autosetup"
	"github.com/rentapp/x/otelx"
	"github.com/rentapp/x/pubsubx"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("should load the defaults", func(t *testing.T) {
		c, _, err := Load(ctx, newFlags(t))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost", c.Origin)
		assert.Equal(t, autosetup.ProviderFile, c.Storage.Provider)
		assert.True(t, c.Storage.FallbackToUnavailable)
		assert.Equal(t, 10*time.Second, c.Storage.ConnectTimeout)
		assert.Equal(t, pubsubx.ProviderNone, c.Events.Provider)
		assert.Equal(t, "feature-flag-changed", c.Events.Topic)
		assert.Equal(t, otelx.ProviderNone, c.Tracing.Provider)
		assert.Equal(t, otelx.MeterProviderPrometheus, c.Metrics.Provider)
		assert.Equal(t, time.Minute, c.Metrics.Providers.OTLP.Interval)
		assert.False(t, c.Toggle.Atomic)
		assert.Equal(t, ":4480", c.Serve.HTTP.Address)
		assert.Equal(t, ":4481", c.Serve.GRPC.Address)
		assert.Equal(t, 10*time.Second, c.Serve.ShutdownTimeout)
		assert.Equal(t, "info", c.Log.Level)
		assert.Equal(t, "json", c.Log.Format)
	})

	t.Run("should merge files, environment and flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flagd.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"origin: https://file.rentapp.test\ntoggle:\n  atomic: true\nstorage:\n  provider: sqlite\n",
		), 0o600))
		t.Setenv("FLAGD_STORAGE__PROVIDER", "memory")
		t.Setenv("FLAGD_LOG__FORMAT", "text")

		c, _, err := Load(ctx, newFlags(t, "--config", path, "--origin", "https://flag.rentapp.test"))
		require.NoError(t, err)

		assert.Equal(t, "https://flag.rentapp.test", c.Origin)
		assert.True(t, c.Toggle.Atomic)
		assert.Equal(t, autosetup.ProviderMemory, c.Storage.Provider)
		assert.Equal(t, "text", c.Log.Format)
	})

	t.Run("should apply forced values", func(t *testing.T) {
		c, _, err := Load(ctx, nil, configx.WithValue("events.provider", pubsubx.ProviderInMemory))
		require.NoError(t, err)
		assert.Equal(t, pubsubx.ProviderInMemory, c.Events.Provider)
	})

	t.Run("should reject invalid values", func(t *testing.T) {
		_, _, err := Load(ctx, nil, configx.WithValue("storage.provider", "floppy"))
		assert.Error(t, err)
	})
}
