package pubsubx

import (
	"context"

	"github.com/rentapp/x/pubsubx/messagex"
)

// Publisher is an interface for publishing messages to a topic.
type Publisher interface {
	// PublishSync publishes messages synchronously to the specified topic.
	// Errors holds one entry per message; the returned error is the first
	// non nil one.
	PublishSync(ctx context.Context, topic messagex.Topic, messages ...*messagex.Message) (Errors, error)

	// Close closes the publisher.
	// Once a publisher is closed, it cannot be used to publish messages anymore.
	Close() error
}
