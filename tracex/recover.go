package tracex

import (
	"context"

	internaltracex "github.com/rentapp/x/internal/tracex"
	"github.com/rentapp/x/loggerx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// RecoverWithStackTrace recovers from a panic and logs msg with the stack trace.
// It must be deferred directly, i.e. defer tracex.RecoverWithStackTrace(ctx, l, "watcher crashed")
func RecoverWithStackTrace(ctx context.Context, l *loggerx.Logger, msg string) {
	// The recoverer itself must never panic.
	defer func() {
		_ = recover()
	}()

	if r := recover(); r != nil {
		if l == nil {
			return
		}
		l.Error(ctx, msg, StackTraceAttrs(r)...)
	}
}

func StackTraceAttrs(recovered any) []attribute.KeyValue {
	out := []attribute.KeyValue{}
	if recovered == nil {
		return out
	}
	out = append(out, semconv.ExceptionStacktrace(internaltracex.GetStackTrace(3)))
	switch v := recovered.(type) {
	case string:
		out = append(out, semconv.ExceptionMessage(v))
	case error:
		out = append(out, semconv.ExceptionMessage(v.Error()))
	default:
		out = append(out, semconv.ExceptionMessage("unknown panic"))
	}

	return out
}
