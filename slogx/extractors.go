package slogx

import (
	"context"
	"log/slog"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

const RequestIDField = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// NewRequestIDExtractor appends the request id stored by WithRequestID to every record.
func NewRequestIDExtractor() slogctx.AttrExtractor {
	return func(ctx context.Context, _ time.Time, _ slog.Level, _ string) []slog.Attr {
		if ctx == nil {
			return nil
		}
		requestID, ok := RequestIDFromContext(ctx)
		if !ok {
			return nil
		}
		return []slog.Attr{slog.String(RequestIDField, requestID)}
	}
}
