package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/slogx"
	"github.com/rentapp/x/tracex"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware sees the request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID propagates the X-Request-Id header, generating one when missing,
// and stores it in the request context for the logs.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeaderKey)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeaderKey, requestID)
			next.ServeHTTP(w, r.WithContext(slogx.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Trace starts a server span per request, continuing the caller's trace.
func Trace(tp trace.TracerProvider, prop propagation.TextMapPropagator) Middleware {
	tracer := tp.Tracer("github.com/rentapp/x/httpx")
	if prop == nil {
		prop = defaultPropagator()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			_, _, sc := otelhttptrace.Extract(ctx, r, otelhttptrace.WithPropagators(prop))
			if sc.IsValid() {
				ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
			}
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))
			span.SetAttributes(semconv.HTTPResponseStatusCode(m.Code))
		})
	}
}

// UnmatchedRoute names the requests no route was recorded for.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

// SetRoute names the route serving r in the log line and the metrics
// recorded by Log. It is a no-op outside of Log.
func SetRoute(r *http.Request, route string) {
	if p, ok := r.Context().Value(routeKey{}).(*string); ok {
		*p = route
	}
}

// Log logs every request with its status and latency and records them in
// metrics. Requests are named after the route set with SetRoute, so the
// middleware must wrap the router to see unmatched requests as well.
func Log(l *loggerx.Logger, metrics *metricsx.HTTPMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := UnmatchedRoute
			r = r.WithContext(context.WithValue(r.Context(), routeKey{}, &route))

			m := httpsnoop.CaptureMetrics(next, w, r)
			metrics.Observe(r.Context(), route, r.Method, m.Code, m.Duration.Seconds())

			level := slog.LevelInfo
			if m.Code >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			l.WithSpanContext(r.Context()).Logger.LogAttrs(r.Context(), level, "request handled",
				slogx.RequestAttr(r),
				slog.String("route", route),
				slog.Int("status", m.Code),
				slog.Int64("written", m.Written),
				slog.Duration("duration", m.Duration),
			)
		})
	}
}

// Recover answers a panicking handler with an internal error.
func Recover(l *loggerx.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					attrs := append(tracex.StackTraceAttrs(rec), attribute.String("path", r.URL.Path))
					l.Error(r.Context(), "handler panicked", attrs...)
					WriteError(w, errorx.InternalErrorf("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows browsers served from allowedOrigins to call the API. No
// origin is allowed when the list is empty.
func CORS(allowedOrigins []string) Middleware {
	if len(allowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeaderKey},
		ExposedHeaders: []string{RequestIDHeaderKey},
	})
	return c.Handler
}
