package pubsubx

import (
	"context"

	"github.com/rentapp/x/pubsubx/messagex"
)

type Subscriber interface {
	// Subscribe delivers the messages published to topics until ctx is done,
	// then closes the channel.
	Subscribe(ctx context.Context, topics ...messagex.Topic) (<-chan *messagex.Message, error)
	// Close closes the subscriber.
	Close() error
}
