// Package featureflaghttp serves the flags of a featureflagx.Store over HTTP.
package featureflaghttp

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/httpx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/persistencex"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	FlagsPath  = "/flags"
	FlagPath   = "/flags/{flag}"
	StoredPath = "/stored-flags"
	HealthPath = "/health/alive"

	maxBodyBytes = 1 << 10
)

// FlagState is the document answered for a single flag.
type FlagState struct {
	Flag    featureflagx.FeatureFlag `json:"flag"`
	Enabled bool                     `json:"enabled"`
}

// FlagsState is the document answered for every known flag.
type FlagsState struct {
	Flags map[featureflagx.FeatureFlag]bool `json:"flags"`
}

// SetRequest is the body of PUT /flags/{flag}.
type SetRequest struct {
	Enabled *bool `json:"enabled"`
}

type options struct {
	l              *loggerx.Logger
	metrics        *metricsx.HTTPMetrics
	tracerProvider trace.TracerProvider
	propagator     propagation.TextMapPropagator
	allowedOrigins []string
}

type Option func(*options)

func WithLogger(l *loggerx.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

func WithMetrics(m *metricsx.HTTPMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithTracing(tp trace.TracerProvider, prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
		o.propagator = prop
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) {
		o.allowedOrigins = origins
	}
}

type handler struct {
	s *featureflagx.Store
}

// NewHandler returns the admin API over s.
func NewHandler(s *featureflagx.Store, opts ...Option) http.Handler {
	o := &options{
		l:              loggerx.NewDiscard(),
		tracerProvider: noop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	h := &handler{s: s}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, errorx.NotFoundErrorf("no such route"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Unimplemented keeps the gRPC meaning of an unsupported method when
		// the body is read back with httpx.ErrorFromResponse.
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, errorx.UnimplementedErrorf("method %s is not allowed", req.Method))
	})
	r.Use(nameRoute)

	r.HandleFunc(HealthPath, h.alive).Methods(http.MethodGet)
	r.HandleFunc(FlagsPath, h.list).Methods(http.MethodGet)
	r.HandleFunc(StoredPath, h.stored).Methods(http.MethodGet)
	r.HandleFunc(FlagPath, h.get).Methods(http.MethodGet)
	r.HandleFunc(FlagPath, h.set).Methods(http.MethodPut)
	r.HandleFunc(FlagPath+"/enable", h.enable).Methods(http.MethodPost)
	r.HandleFunc(FlagPath+"/disable", h.disable).Methods(http.MethodPost)
	r.HandleFunc(FlagPath+"/toggle", h.toggle).Methods(http.MethodPost)

	return httpx.Chain(r,
		httpx.RequestID(),
		httpx.Trace(o.tracerProvider, o.propagator),
		httpx.Log(o.l, o.metrics),
		httpx.Recover(o.l),
		httpx.CORS(o.allowedOrigins),
	)
}

// nameRoute reports the template of the matched route to httpx.Log.
func nameRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				httpx.SetRoute(r, tpl)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func flagFromRequest(r *http.Request) (featureflagx.FeatureFlag, error) {
	return featureflagx.ParseFeatureFlag(mux.Vars(r)["flag"])
}

func (h *handler) alive(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	snapshot := h.s.Snapshot(r.Context())
	out := FlagsState{Flags: make(map[featureflagx.FeatureFlag]bool, len(snapshot.GetFlags()))}
	for ff, v := range snapshot.GetFlags() {
		out.Flags[ff] = v.IsEnabled()
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// stored pages through the flags present in the storage, sorted by name.
func (h *handler) stored(w http.ResponseWriter, r *http.Request) {
	req, err := persistencex.ListRequestFromQuery(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	flags, err := h.s.Stored(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	slices.Sort(flags)
	httpx.WriteJSON(w, http.StatusOK, persistencex.Paginate(flags, req))
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	ff, err := flagFromRequest(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, FlagState{Flag: ff, Enabled: h.s.IsEnabled(r.Context(), ff)})
}

func (h *handler) set(w http.ResponseWriter, r *http.Request) {
	ff, err := flagFromRequest(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	var body SetRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		httpx.WriteError(w, errorx.InvalidArgumentErrorf("invalid body: %v", err))
		return
	}
	if body.Enabled == nil {
		httpx.WriteError(w, errorx.InvalidArgumentErrorf(`invalid body: "enabled" is required`))
		return
	}

	h.s.Set(r.Context(), ff, *body.Enabled)
	h.state(w, r, ff)
}

func (h *handler) enable(w http.ResponseWriter, r *http.Request) {
	ff, err := flagFromRequest(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	h.s.Enable(r.Context(), ff)
	h.state(w, r, ff)
}

func (h *handler) disable(w http.ResponseWriter, r *http.Request) {
	ff, err := flagFromRequest(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	h.s.Disable(r.Context(), ff)
	h.state(w, r, ff)
}

func (h *handler) toggle(w http.ResponseWriter, r *http.Request) {
	ff, err := flagFromRequest(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, FlagState{Flag: ff, Enabled: h.s.Toggle(r.Context(), ff)})
}

// state answers the stored state after a write, which stays disabled when
// the write was dropped.
func (h *handler) state(w http.ResponseWriter, r *http.Request, ff featureflagx.FeatureFlag) {
	httpx.WriteJSON(w, http.StatusOK, FlagState{Flag: ff, Enabled: h.s.IsEnabled(r.Context(), ff)})
}
