// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultExportInterval = time.Minute

type Meter struct {
	provider metric.MeterProvider
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

// NewMeter creates a meter provider from the configuration. An empty
// provider yields a no-op meter. The prometheus provider collects into its
// own registry, served through Gatherer.
func NewMeter(ctx context.Context, l *loggerx.Logger, c *MeterConfig) (*Meter, error) {
	m := &Meter{}

	var reader sdkmetric.Reader
	switch c.Provider {
	case MeterProviderNone:
		l.Info(ctx, "no metrics provider configured, skipping metrics setup")
		return NewNoopMeter(), nil
	case MeterProviderPrometheus:
		m.registry = prometheus.NewRegistry()
		exp, err := newPrometheusReader(m.registry)
		if err != nil {
			return nil, err
		}
		reader = exp
	case MeterProviderOTLP:
		exp, err := newOTLPMetricExporter(ctx, c)
		if err != nil {
			return nil, err
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval(c.Providers.OTLP.Interval)))
	case MeterProviderStdout:
		exp, err := newStdoutMetricExporter(c)
		if err != nil {
			return nil, err
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval(c.Providers.Stdout.Interval)))
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown metrics provider %q, expected one of [%q, %q, %q, %q]",
			c.Provider, MeterProviderNone, MeterProviderPrometheus, MeterProviderOTLP, MeterProviderStdout)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
		)),
	)
	m.provider = mp
	m.shutdown = mp.Shutdown

	l.Info(ctx, "metrics configured", attribute.String("provider", c.Provider))
	return m, nil
}

func NewNoopMeter() *Meter {
	return &Meter{
		provider: noop.NewMeterProvider(),
		shutdown: func(context.Context) error { return nil },
	}
}

func exportInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultExportInterval
	}
	return d
}

// IsLoaded returns true if the meter has been loaded.
func (m *Meter) IsLoaded() bool {
	return m != nil && m.provider != nil
}

func (m *Meter) Provider() metric.MeterProvider {
	return m.provider
}

func (m *Meter) Meter(name string) metric.Meter {
	return m.provider.Meter(name)
}

// Gatherer returns the registry filled by the prometheus provider, nil for
// every other provider.
func (m *Meter) Gatherer() prometheus.Gatherer {
	if m.registry == nil {
		return nil
	}
	return m.registry
}

// Shutdown flushes pending measurements.
func (m *Meter) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}
