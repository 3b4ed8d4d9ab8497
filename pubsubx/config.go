package pubsubx

import (
	"bytes"
	_ "embed"
	"io"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	ProviderNone     = "none"
	ProviderInMemory = "inmemory"
	ProviderKafka    = "kafka"
)

type Config struct {
	Scope     string          `json:"scope" koanf:"scope"`
	Provider  string          `json:"provider" koanf:"provider"`
	Topic     string          `json:"topic" koanf:"topic"`
	Providers ProvidersConfig `json:"providers" koanf:"providers"`
}

type ProvidersConfig struct {
	Kafka KafkaConfig `json:"kafka" koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" koanf:"brokers"`
	// CreateTopics creates the missing topics on setup.
	CreateTopics      bool  `json:"create_topics" koanf:"create_topics"`
	Partitions        int32 `json:"partitions" koanf:"partitions"`
	ReplicationFactor int16 `json:"replication_factor" koanf:"replication_factor"`
}

type PubSubOptions struct {
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

type PubSubOption func(*PubSubOptions)

// WithTracerProvider specifies a tracer provider to use for creating a tracer.
// If none is specified, no tracer is configured
func WithTracerProvider(provider trace.TracerProvider) PubSubOption {
	return func(opts *PubSubOptions) {
		if provider != nil {
			opts.TracerProvider = provider
		}
	}
}

func WithPropagator(propagator propagation.TextMapPropagator) PubSubOption {
	return func(opts *PubSubOptions) {
		if propagator != nil {
			opts.Propagator = propagator
		}
	}
}

func NewPubSubOptions(opts ...PubSubOption) *PubSubOptions {
	o := &PubSubOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "rentapp://events-config"

// AddConfigSchema adds the events schema to the compiler.
// The interface is specified instead of `jsonschema.Compiler` to allow the use of any jsonschema library fork or version.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
