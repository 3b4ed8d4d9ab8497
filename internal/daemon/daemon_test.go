package daemon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rentapp/x/configx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/featureflagx/featureflaggrpc"
	"github.com/rentapp/x/featureflagx/featureflaghttp"
	"github.com/rentapp/x/httpx"
	"github.com/rentapp/x/internal/config"
	"github.com/rentapp/x/kvx/autosetup"
	"github.com/rentapp/x/loggerx"
	loggerxtest "github.com/rentapp/x/loggerx/test"
	"github.com/rentapp/x/pubsubx"
	"github.com/rentapp/x/testx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestDaemon(t *testing.T, values map[string]interface{}) *Daemon {
	t.Helper()
	return newTestDaemonWithLogger(t, loggerxtest.NewTestLogger(t), values)
}

func newTestDaemonWithLogger(t *testing.T, l *loggerx.Logger, values map[string]interface{}) *Daemon {
	t.Helper()
	c, _, err := config.Load(context.Background(), nil,
		configx.DisableEnvLoading(),
		configx.WithValues(map[string]interface{}{
			"storage.provider":       autosetup.ProviderMemory,
			"serve.http.address":     "127.0.0.1:0",
			"serve.grpc.address":     "127.0.0.1:0",
			"serve.shutdown_timeout": "2s",
		}),
		configx.WithValues(values),
	)
	require.NoError(t, err)

	d, err := New(context.Background(), l, c)
	require.NoError(t, err)
	return d
}

func serve(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestDaemon(t *testing.T) {
	ctx := context.Background()
	d := newTestDaemon(t, map[string]interface{}{
		"events.provider": pubsubx.ProviderInMemory,
		"toggle.atomic":   true,
	})
	serve(t, d)

	t.Run("should serve the admin api", func(t *testing.T) {
		var state featureflaghttp.FlagState
		err := httpx.NewHTTPClient().DoJSON(ctx, &httpx.Request{
			Method: http.MethodPost,
			URL:    "http://" + d.HTTPAddr() + "/flags/" + featureflagx.StaffEnrollment.String() + "/enable",
		}, &state)
		require.NoError(t, err)
		assert.True(t, state.Enabled)
		assert.True(t, d.Store().IsEnabled(ctx, featureflagx.StaffEnrollment))
	})

	t.Run("should serve grpc", func(t *testing.T) {
		conn, err := grpc.NewClient(d.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		require.NoError(t, err)
		defer conn.Close()

		enabled, err := featureflaggrpc.NewClient(conn).Toggle(ctx, featureflagx.StaffEnrollment)
		require.NoError(t, err)
		assert.False(t, enabled)
		assert.False(t, d.Store().IsEnabled(ctx, featureflagx.StaffEnrollment))
	})

	t.Run("should serve metrics", func(t *testing.T) {
		res, err := http.Get("http://" + d.HTTPAddr() + MetricsPath)
		require.NoError(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, strings.Contains(string(body), "featureflag_operations"), string(body))
		assert.True(t, strings.Contains(string(body), "featureflag_http_requests"), string(body))
	})
}

func TestDaemonLogsEveryStorageChange(t *testing.T) {
	ctx := context.Background()
	buf := testx.NewConcurrentBuffer()
	d := newTestDaemonWithLogger(t, loggerx.New(slog.NewJSONHandler(buf, nil)), nil)
	serve(t, d)

	// The watcher may start after the first write, keep writing until one
	// is reported.
	assert.Eventually(t, func() bool {
		d.Store().Toggle(ctx, featureflagx.StaffEnrollment)
		return strings.Contains(buf.String(), `"msg":"flag changed in storage"`)
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, buf.String(), `"msg":"feature flag written"`)
}

func TestNew(t *testing.T) {
	t.Run("should fail on an address in use", func(t *testing.T) {
		d := newTestDaemon(t, nil)
		serve(t, d)

		c, _, err := config.Load(context.Background(), nil,
			configx.DisableEnvLoading(),
			configx.WithValues(map[string]interface{}{
				"storage.provider":   autosetup.ProviderMemory,
				"serve.http.address": d.HTTPAddr(),
				"serve.grpc.address": "127.0.0.1:0",
			}),
		)
		require.NoError(t, err)

		_, err = New(context.Background(), loggerxtest.NewTestLogger(t), c)
		assert.Error(t, err)
	})
}
