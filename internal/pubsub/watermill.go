package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	metaKeySource = "source"
	metaKeyTopic  = "topic"

	outputBuffer = 64
)

// WatermillBridge implements Bus on top of watermill's in-memory GoChannel.
// Delivery order across messages is not guaranteed; events that must not go
// backwards carry their own sequence numbers.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
}

var _ Bus = (*WatermillBridge)(nil)

// Option configures a WatermillBridge.
type Option func(*WatermillBridge)

// WithTracer adds publish and process spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(wb *WatermillBridge) {
		wb.tracer = tracer
	}
}

// NewWatermillBridge initializes the in-memory bus.
func NewWatermillBridge(opts ...Option) *WatermillBridge {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: outputBuffer},
		logger,
	)

	wb := &WatermillBridge{pub: goChannel, sub: goChannel}
	for _, opt := range opts {
		opt(wb)
	}
	if wb.tracer != nil {
		wb.pub = NewPublisherTracingMiddleware(wb.pub, wb.tracer)
	}
	return wb
}

func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	wmMsg.Metadata.Set(metaKeySource, msg.Source)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return wmMsg
}

func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeySource && k != metaKeyTopic {
			metadata[k] = v
		}
	}
	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		Source:   wmMsg.Metadata.Get(metaKeySource),
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return fmt.Errorf("publish: topic cannot be empty")
	}
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements Subscriber. Messages on one subscription are handled
// sequentially. Handler errors are logged; the message is acked regardless
// because the bus never redelivers.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			wb.handle(ctx, topic, wmMsg, handler)
			wmMsg.Ack()
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()
	return nil
}

func (wb *WatermillBridge) handle(ctx context.Context, topic string, wmMsg *message.Message, handler Handler) {
	msg := mapToPubSubMessage(wmMsg)

	var span trace.Span
	if wb.tracer != nil {
		ctx, span = wb.tracer.Start(ctx, fmt.Sprintf("pubsub.process.%s", topic),
			trace.WithAttributes(
				attribute.String("messaging.system", "watermill"),
				attribute.String("messaging.operation", "process"),
				attribute.String("messaging.destination", topic),
				attribute.String("messaging.message_id", wmMsg.UUID),
				attribute.Int("messaging.message_payload_size_bytes", len(wmMsg.Payload)),
			),
		)
		defer span.End()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in bus handler", "topic", topic, "msg_id", wmMsg.UUID, "panic", r)
		}
	}()

	if err := handler(ctx, msg); err != nil {
		slog.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

// Close shuts down the bus and ends all subscriptions.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
