package otelx

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newStdoutExporter(c *Config) (sdktrace.SpanExporter, error) {
	opts := []stdouttrace.Option{}
	if c.Providers.Stdout.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return exp, nil
}

func newStdoutMetricExporter(c *MeterConfig) (sdkmetric.Exporter, error) {
	opts := []stdoutmetric.Option{}
	if c.Providers.Stdout.Pretty {
		opts = append(opts, stdoutmetric.WithPrettyPrint())
	}

	exp, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return exp, nil
}
