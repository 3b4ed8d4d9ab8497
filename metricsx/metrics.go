// Package metricsx holds the instruments recorded by the flag store and its
// admin API.
package metricsx

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rentapp/x/metricsx"

type FlagMetrics struct {
	operations metric.Int64Counter
	failures   metric.Int64Counter
	enabled    metric.Int64Gauge
}

func NewFlagMetrics(mp metric.MeterProvider) (*FlagMetrics, error) {
	m := mp.Meter(instrumentationName)

	operations, err := m.Int64Counter("featureflag.operations",
		metric.WithDescription("Number of flag operations by flag and operation."))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	failures, err := m.Int64Counter("featureflag.storage_failures",
		metric.WithDescription("Number of storage errors swallowed by the flag store."))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	enabled, err := m.Int64Gauge("featureflag.enabled",
		metric.WithDescription("Last observed state of a flag (1 enabled, 0 disabled)."))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &FlagMetrics{operations: operations, failures: failures, enabled: enabled}, nil
}

// Observe records an operation and the state it observed or produced.
// A nil receiver is a no-op.
func (m *FlagMetrics) Observe(ctx context.Context, flag, operation string, enabled bool) {
	if m == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag", flag),
		attribute.String("operation", operation),
	))
	var v int64
	if enabled {
		v = 1
	}
	m.enabled.Record(ctx, v, metric.WithAttributes(attribute.String("flag", flag)))
}

func (m *FlagMetrics) Failure(ctx context.Context, flag, operation string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag", flag),
		attribute.String("operation", operation),
	))
}

type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewHTTPMetrics(mp metric.MeterProvider) (*HTTPMetrics, error) {
	m := mp.Meter(instrumentationName)

	requests, err := m.Int64Counter("featureflag.http.requests",
		metric.WithDescription("Number of admin API requests by route and status code."))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	duration, err := m.Float64Histogram("featureflag.http.request.duration",
		metric.WithDescription("Admin API latency by route."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

func (m *HTTPMetrics) Observe(ctx context.Context, route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("code", code),
	))
	m.duration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
	))
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
