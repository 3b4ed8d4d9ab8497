// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"

	"github.com/rentapp/x/errorx"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newOTLPExporter(ctx context.Context, c *Config) (sdktrace.SpanExporter, error) {
	oc := c.Providers.OTLP
	switch oc.Protocol {
	case "http":
		clientOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(oc.ServerURL),
		}
		if oc.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(clientOpts...))
	case "grpc", "":
		clientOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(oc.ServerURL),
		}
		if oc.Insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown OTLP protocol: %s", oc.Protocol)
	}
}

func newOTLPMetricExporter(ctx context.Context, c *MeterConfig) (sdkmetric.Exporter, error) {
	oc := c.Providers.OTLP
	switch oc.Protocol {
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(oc.ServerURL),
		}
		if oc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(oc.ServerURL),
		}
		if oc.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown OTLP protocol: %s", oc.Protocol)
	}
}
