// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"
	"net/http"
	"testing"

	"github.com/rentapp/x/errorx"
	loggerxtest "github.com/rentapp/x/loggerx/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	l := loggerxtest.NewTestLogger(t)

	t.Run("should return a noop tracer without provider", func(t *testing.T) {
		tr, err := New(ctx, l, &Config{ServiceName: "flagd"})
		require.NoError(t, err)
		assert.True(t, tr.IsLoaded())

		_, span := tr.Tracer("test").Start(ctx, "op")
		defer span.End()
		assert.False(t, span.SpanContext().IsValid())
	})

	t.Run("should record spans with the stdout provider", func(t *testing.T) {
		tr, err := New(ctx, l, &Config{ServiceName: "flagd", Provider: ProviderStdout})
		require.NoError(t, err)
		t.Cleanup(func() { _ = tr.Shutdown(ctx) })

		_, span := tr.Tracer("test").Start(ctx, "op")
		defer span.End()
		assert.True(t, span.SpanContext().IsValid())
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		_, err := New(ctx, l, &Config{Provider: "zipkin"})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})

	t.Run("should reject unknown otlp protocols", func(t *testing.T) {
		_, err := New(ctx, l, &Config{Provider: ProviderOTLP, Providers: ProvidersConfig{OTLP: OTLPConfig{Protocol: "udp"}}})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})
}

func TestPropagation(t *testing.T) {
	tr := NewNoop()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa},
		SpanID:     trace.SpanID{0xb},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := propagation.HeaderCarrier(http.Header{})
	tr.Inject(ctx, carrier)
	assert.NotEmpty(t, carrier.Get("traceparent"))
	assert.NotEmpty(t, carrier.Get("x-b3-traceid"))

	out := trace.SpanContextFromContext(tr.Extract(context.Background(), carrier))
	assert.Equal(t, sc.TraceID(), out.TraceID())
}
