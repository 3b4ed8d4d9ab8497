package tracex

import (
	"context"

	"github.com/rentapp/x/loggerx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const ComponentNameSeparator = "."

func ComponentName(packageName, structName string) string {
	return packageName + ComponentNameSeparator + structName
}

/*
Instrument starts a span named after the component and returns a logger
carrying the component name, the span ids and the span start attributes.
`span.End()` must be called once done.

	const myComponentName = "xpackage.xStruct"

	func (xs *xStruct) instrument(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *loggerx.Logger) {
		return tracex.Instrument(ctx, xs.l, xs.tracer, myComponentName, name, opts...)
	}

	func (xs *xStruct) process(ctx context.Context) error {
		ctx, span, l := xs.instrument(ctx, "process")
		defer span.End()
	}
*/
func Instrument(ctx context.Context, l *loggerx.Logger, tracer trace.Tracer, componentName string, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *loggerx.Logger) {
	fullComponentName := ComponentName(componentName, name)
	ctx, span := tracer.Start(ctx, fullComponentName, opts...)

	kvs := []attribute.KeyValue{attribute.Key("component").String(fullComponentName)}
	cfg := trace.NewSpanStartConfig(opts...)
	kvs = append(kvs, cfg.Attributes()...)

	return ctx, span, l.WithSpanContext(ctx).WithFields(kvs...)
}
