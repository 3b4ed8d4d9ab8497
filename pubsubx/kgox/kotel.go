package kgox

import (
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// newKotel creates the hooks tracing produced and consumed records. Kafka
// client metrics are left to the broker side.
func newKotel(tracerProvider trace.TracerProvider, propagator propagation.TextMapPropagator) *kotel.Kotel {
	tracerOpts := []kotel.TracerOpt{}
	if tracerProvider != nil {
		tracerOpts = append(tracerOpts, kotel.TracerProvider(tracerProvider))
	}
	if propagator != nil {
		tracerOpts = append(tracerOpts, kotel.TracerPropagator(propagator))
	}
	tr := kotel.NewTracer(tracerOpts...)

	return kotel.NewKotel(kotel.WithTracer(tr))
}
