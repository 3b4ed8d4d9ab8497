// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Tracer struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

// New creates a tracer from the configuration. An empty provider yields a
// no-op tracer.
func New(ctx context.Context, l *loggerx.Logger, c *Config) (*Tracer, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch c.Provider {
	case ProviderNone:
		l.Info(ctx, "no tracing provider configured, skipping tracing setup")
		return NewNoop(), nil
	case ProviderStdout:
		exp, err = newStdoutExporter(c)
	case ProviderOTLP:
		exp, err = newOTLPExporter(ctx, c)
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown tracing provider %q, expected one of [%q, %q, %q]", c.Provider, ProviderNone, ProviderStdout, ProviderOTLP)
	}
	if err != nil {
		return nil, err
	}

	ratio := c.Providers.OTLP.Sampling.SamplingRatio
	if c.Provider == ProviderStdout && ratio == 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	l.Info(ctx, "tracing configured",
		attribute.String("provider", c.Provider),
		attribute.String("server_url", c.Providers.OTLP.ServerURL),
		attribute.Float64("sampling_ratio", ratio),
	)

	return &Tracer{
		provider:   tp,
		propagator: newPropagator(),
		shutdown:   tp.Shutdown,
	}, nil
}

func NewNoop() *Tracer {
	return &Tracer{
		provider:   noop.NewTracerProvider(),
		propagator: newPropagator(),
		shutdown:   func(context.Context) error { return nil },
	}
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		b3.New(),
		jaeger.Jaeger{},
	)
}

// IsLoaded returns true if the tracer has been loaded.
func (t *Tracer) IsLoaded() bool {
	return t != nil && t.provider != nil
}

func (t *Tracer) Provider() trace.TracerProvider {
	return t.provider
}

func (t *Tracer) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

func (t *Tracer) TextMapPropagator() propagation.TextMapPropagator {
	return t.propagator
}

// Inject sets the trace context from ctx into the carrier.
func (t *Tracer) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	t.propagator.Inject(ctx, carrier)
}

// Extract reads the trace context from the carrier into a returned Context.
func (t *Tracer) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return t.propagator.Extract(ctx, carrier)
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
