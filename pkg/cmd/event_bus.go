package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/planstudio/flowhistory/pkg/channels/gochannel"
	"github.com/planstudio/flowhistory/pkg/channels/kafka"
	"github.com/planstudio/flowhistory/pkg/eventbus"
)

func NewEventBus(provider string, logger *slog.Logger, opts ...eventbus.WatermillOption) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "flowhistory")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, opts...)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, opts...)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
