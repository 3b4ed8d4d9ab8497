package pubsubx

type PubSub interface {
	Publisher() Publisher
	// Subscriber returns the subscriber of a consumer group. Members of a
	// group share the messages; distinct groups each receive all of them.
	Subscriber(group string) (Subscriber, error)
	// Close closes all publishers and subscribers.
	Close() error
}
