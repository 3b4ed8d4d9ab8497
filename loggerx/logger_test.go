package loggerx_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rentapp/x/errorx"
	loggerxtest "github.com/rentapp/x/loggerx/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	out := []map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("should log with fields at each level", func(t *testing.T) {
		l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
		l = l.WithFields(attribute.String("component", "featureflagx.Store"))

		l.Debug(ctx, "debug", attribute.Bool("enabled", false))
		l.Info(ctx, "info")
		l.Warn(ctx, "warn")
		l.Error(ctx, "error")

		recs := decodeLines(t, buf.String())
		require.Len(t, recs, 4)
		assert.Equal(t, "DEBUG", recs[0]["level"])
		assert.Equal(t, false, recs[0]["enabled"])
		assert.Equal(t, "ERROR", recs[3]["level"])
		for _, rec := range recs {
			assert.Equal(t, "featureflagx.Store", rec["component"])
		}
	})

	t.Run("should attach the error", func(t *testing.T) {
		l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
		l.WithError(errorx.InternalErrorf("boom")).Warn(ctx, "failed")

		recs := decodeLines(t, buf.String())
		require.Len(t, recs, 1)
		assert.Equal(t, map[string]any{"type": "INTERNAL", "message": "boom"}, recs[0]["error"])
	})

	t.Run("should attach the span context when valid", func(t *testing.T) {
		l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		})
		sctx := trace.ContextWithSpanContext(ctx, sc)

		l.WithSpanContext(sctx).Info(sctx, "traced")
		l.WithSpanContext(ctx).Info(ctx, "untraced")

		recs := decodeLines(t, buf.String())
		require.Len(t, recs, 2)
		assert.Equal(t, sc.TraceID().String(), recs[0]["trace_id"])
		assert.NotContains(t, recs[1], "trace_id")
	})

	t.Run("should discard everything", func(t *testing.T) {
		l := loggerxtest.NewTestLogger(t)
		assert.NotPanics(t, func() { l.WithStackTrace().Error(ctx, "dropped") })
	})
}
