package kgox

import (
	"context"

	"github.com/rentapp/x/pubsubx/messagex"
	"github.com/segmentio/ksuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Marshaler interface {
	// Marshal marshals a message into a Kafka record.
	Marshal(ctx context.Context, m *messagex.Message, topic string) (*kgo.Record, error)
}

type Unmarshaler interface {
	// Unmarshal unmarshals a Kafka record into a message.
	Unmarshal(r *kgo.Record) (*messagex.Message, error)
}

type DefaultMarshaler struct{}

var (
	_                Marshaler   = (*DefaultMarshaler)(nil)
	_                Unmarshaler = (*DefaultMarshaler)(nil)
	defaultMarshaler             = &DefaultMarshaler{}
)

// Marshal implements Marshaler. The message ID always travels in the
// IDHeaderKey header, a missing ID is generated.
func (m *DefaultMarshaler) Marshal(ctx context.Context, msg *messagex.Message, topic string) (*kgo.Record, error) {
	if msg.ID == "" {
		msg.ID = ksuid.New().String()
	}

	headers := make([]kgo.RecordHeader, 0, len(msg.Metadata)+1)
	headers = append(headers, kgo.RecordHeader{
		Key:   messagex.IDHeaderKey,
		Value: []byte(msg.ID),
	})
	for k, v := range msg.Metadata {
		if k == messagex.IDHeaderKey {
			continue
		}
		headers = append(headers, kgo.RecordHeader{
			Key:   k,
			Value: []byte(v),
		})
	}

	// The record context parents the produce span.
	ctx = msg.ExtractTraceContext(ctx)

	return &kgo.Record{
		Context: ctx,
		Topic:   topic,
		Headers: headers,
		Value:   msg.Payload,
	}, nil
}

// Unmarshal implements Unmarshaler.
func (m *DefaultMarshaler) Unmarshal(r *kgo.Record) (*messagex.Message, error) {
	msg := &messagex.Message{
		Metadata: make(messagex.MessageMetadata, len(r.Headers)),
		Payload:  r.Value,
	}

	for _, header := range r.Headers {
		if header.Key == messagex.IDHeaderKey {
			msg.ID = string(header.Value)
			continue
		}

		msg.Metadata[header.Key] = string(header.Value)
	}

	return msg, nil
}
