package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event[T] binds a topic name to its payload type.
type Event[T any] struct {
	topicName string
}

// NewEvent creates a typed event for topic name.
func NewEvent[T any](name string) Event[T] {
	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Publish sends a typed event.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name(), err)
	}
	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Payload: data,
	})
}

// Subscribe decodes each message on the event's topic into T before calling fn.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], fn func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Name(), err)
		}
		return fn(ctx, payload)
	})
}
