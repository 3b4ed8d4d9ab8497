package messagex

import (
	"context"
	"encoding/json"

	"github.com/segmentio/ksuid"
)

const (
	IDHeaderKey           = "_rentapp_message_id"
	FeatureFlagsHeaderKey = "_rentapp_feature_flags"
)

// Message intentionally has no json marshalling fields, each transport
// encodes it on its own.
type Message struct {
	ID       string
	Metadata MessageMetadata
	Payload  []byte
}

type MessageMetadata map[string]string

// NewMessage creates a message carrying payload. A KSUID is used as ID
// unless WithID is given.
func NewMessage(payload []byte, opts ...NewMessageOption) *Message {
	o := newMessageOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.id == "" {
		o.id = ksuid.New().String()
	}

	if o.m == nil {
		o.m = make(MessageMetadata)
	}

	return &Message{
		ID:       o.id,
		Metadata: o.m,
		Payload:  payload,
	}
}

type newMessageOptions struct {
	id string
	m  MessageMetadata
}

type NewMessageOption func(*newMessageOptions)

// WithID sets the ID of the message.
func WithID(id string) NewMessageOption {
	return func(o *newMessageOptions) {
		o.id = id
	}
}

// WithMetadata sets the metadata of the message.
func WithMetadata(m MessageMetadata) NewMessageOption {
	return func(o *newMessageOptions) {
		o.m = m
	}
}

// WithFeatureFlags attaches a snapshot of feature flags to the message so
// that consumers evaluate flags the way the producer did.
func WithFeatureFlags(ffs json.Marshaler) NewMessageOption {
	return func(o *newMessageOptions) {
		if ffs == nil {
			return
		}
		s, err := ffs.MarshalJSON()
		if err != nil {
			return
		}
		if o.m == nil {
			o.m = make(MessageMetadata)
		}
		o.m[FeatureFlagsHeaderKey] = string(s)
	}
}

// FeatureFlags returns the raw snapshot attached by WithFeatureFlags.
func (m *Message) FeatureFlags() ([]byte, bool) {
	v, ok := m.Metadata[FeatureFlagsHeaderKey]
	if !ok || v == "" {
		return nil, false
	}
	return []byte(v), true
}

func (m *Message) Copy() *Message {
	newMessage := Message{
		ID:       m.ID,
		Metadata: MessageMetadata{},
		Payload:  make([]byte, len(m.Payload)),
	}

	copy(newMessage.Payload, m.Payload)

	for key, value := range m.Metadata {
		newMessage.Metadata[key] = value
	}

	return &newMessage
}

func (m *Message) ExtractTraceContext(ctx context.Context) context.Context {
	prop := NewTraceContextPropagator()
	return prop.Extract(ctx, m.Metadata)
}

func (m *Message) InjectTraceContext(ctx context.Context) {
	if m.Metadata == nil {
		m.Metadata = make(MessageMetadata)
	}
	prop := NewTraceContextPropagator()
	prop.Inject(ctx, m)
}
