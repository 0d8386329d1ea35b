package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/biodt/argo-connector/pkg/channels/kafka"
	"github.com/biodt/argo-connector/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider. The
// default in-process channel suits single-instance deployments; kafka is for
// anything that needs durable, shared lifecycle events.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, "argo-connector")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "gochannel":
		channel := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

		return eventbus.NewWatermillEventBus(channel, channel), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
