package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "feed.snapshot").
	Topic string
	// Source names the component that published the message.
	Source string
	// Payload contains the encoded event.
	Payload []byte
	// Metadata carries arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages on topic to handler and returns
	// immediately. Delivery stops when ctx is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
}

// Bus is both ends of the event bus.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
