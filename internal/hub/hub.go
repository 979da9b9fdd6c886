// Package hub fans rendered HTML fragments out to connected browser tabs.
package hub

import (
	"context"
	"log/slog"
)

const sendBuffer = 16

// Subscriber is a single client receiving rendered fragments from the Hub.
type Subscriber struct {
	// Send is buffered and closed by the Hub when the subscriber is dropped.
	Send chan []byte
}

// NewSubscriber creates a subscriber with a buffered Send channel.
func NewSubscriber() *Subscriber {
	return &Subscriber{Send: make(chan []byte, sendBuffer)}
}

// Hub maintains the set of active subscribers and broadcasts to them. It
// remembers the last broadcast so a new subscriber starts from the current screen.
type Hub struct {
	subscribers map[*Subscriber]bool
	last        []byte

	broadcast  chan []byte
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}
}

// NewHub creates and returns a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		broadcast:   make(chan []byte),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
		subscribers: make(map[*Subscriber]bool),
	}
}

// Broadcast queues msg for every subscriber. It returns false once the hub has stopped.
func (h *Hub) Broadcast(msg []byte) bool {
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
		return false
	}
}

// Register adds s. It returns false once the hub has stopped.
func (h *Hub) Register(s *Subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes s and closes its Send channel.
func (h *Hub) Unregister(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Run processes hub traffic until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for s := range h.subscribers {
			close(s.Send)
			delete(h.subscribers, s)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.subscribers[s] = true
			slog.Info("New subscriber registered", "total_subscribers", len(h.subscribers))
			if h.last != nil {
				h.deliver(s, h.last)
			}

		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.Send)
				slog.Info("Subscriber unregistered", "total_subscribers", len(h.subscribers))
			}

		case msg := <-h.broadcast:
			h.last = msg
			slog.Debug("Broadcasting fragment", "recipient_count", len(h.subscribers))
			for s := range h.subscribers {
				h.deliver(s, msg)
			}
		}
	}
}

// deliver never blocks. A subscriber whose buffer is full is dropped.
func (h *Hub) deliver(s *Subscriber, msg []byte) {
	select {
	case s.Send <- msg:
	default:
		close(s.Send)
		delete(h.subscribers, s)
		slog.Warn("Unregistering slow subscriber", "total_subscribers", len(h.subscribers))
	}
}
