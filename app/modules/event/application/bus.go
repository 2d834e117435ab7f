package eventservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
)

// Publisher emits lifecycle signals.
type Publisher interface {
	Publish(ctx context.Context, topic string, sig Signal) error
}

// SignalHandler consumes one signal. Returned errors are logged, never redelivered.
type SignalHandler func(ctx context.Context, sig Signal) error

// Bus is the in-process signal bus: a watermill gochannel with one router handler per topic.
// Publish returns once the topic's handler has finished, so signals published
// one after another are handled in that order. A handler must not publish to
// its own topic.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger *slog.Logger
}

// NewBus creates a bus. Handlers must be registered before Run.
func NewBus(logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

// Publish encodes sig and publishes it on topic, carrying ctx's correlation id
// or a fresh one.
func (b *Bus) Publish(ctx context.Context, topic string, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	correlationID := observability.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	middleware.SetCorrelationID(correlationID, msg)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Handle registers h for topic.
func (b *Bus) Handle(topic string, h SignalHandler) {
	name := "eventservice." + topic
	b.router.AddNoPublisherHandler(name, topic, b.pubsub, func(msg *message.Message) error {
		ctx := observability.WithCorrelationID(msg.Context(), middleware.MessageCorrelationID(msg))

		var sig Signal
		if err := json.Unmarshal(msg.Payload, &sig); err != nil {
			b.logger.ErrorContext(ctx, "Dropping undecodable signal",
				slog.String("topic", topic),
				slog.String("message_id", msg.UUID),
				slog.Any("error", err),
			)
			return nil
		}

		defer func() {
			if r := recover(); r != nil {
				b.logger.ErrorContext(ctx, "Critical panic recovered in signal handler",
					observability.CorrelationAttr(ctx),
					slog.String("topic", topic),
					slog.Int64("event_id", sig.EventID),
					slog.Any("panic", r),
				)
			}
		}()

		if err := h(ctx, sig); err != nil {
			b.logger.ErrorContext(ctx, "Signal handler failed",
				observability.CorrelationAttr(ctx),
				slog.String("topic", topic),
				slog.Int64("event_id", sig.EventID),
				slog.Any("error", err),
			)
		}
		return nil
	})
}

// Run blocks processing signals until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return fmt.Errorf("error closing router: %w", err)
	}
	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("error closing pubsub: %w", err)
	}
	return nil
}
