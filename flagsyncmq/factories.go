package flagsyncmq

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
)

const DefaultNatsURL = "nats://localhost:4222"

type (
	PublisherFactory  = func(watermill.LoggerAdapter) (message.Publisher, error)
	SubscriberFactory = func(watermill.LoggerAdapter) (message.Subscriber, error)
	RouterFactory     = func(watermill.LoggerAdapter) *message.Router
)

// connectionOptions names the connection after the client so it can be
// told apart in the server's connz output.
func connectionOptions(name string) []nats.Option {
	return []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
}

func NatsPublisherFactory(url, name string) PublisherFactory {
	return func(logger watermill.LoggerAdapter) (message.Publisher, error) {
		logger = logger.With(watermill.LogFields{
			"url":       url,
			"component": "flagsync.publisher",
		})

		pub, err := wnats.NewPublisher(
			wnats.PublisherConfig{
				URL:               url,
				NatsOptions:       connectionOptions(name),
				Marshaler:         nil,
				SubjectCalculator: nil,
				JetStream: wnats.JetStreamConfig{
					Disabled: true,
				},
			},
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create nats publisher: %w", err)
		}

		return pub, nil
	}
}

func NatsSubscriberFactory(url, name string) SubscriberFactory {
	return func(logger watermill.LoggerAdapter) (message.Subscriber, error) {
		logger = logger.With(watermill.LogFields{
			"url":       url,
			"component": "flagsync.subscriber",
		})

		sub, err := wnats.NewSubscriber(
			wnats.SubscriberConfig{
				URL:               url,
				QueueGroupPrefix:  "",
				SubscribersCount:  0,
				CloseTimeout:      0,
				AckWaitTimeout:    0,
				SubscribeTimeout:  0,
				NatsOptions:       connectionOptions(name),
				Unmarshaler:       nil,
				SubjectCalculator: nil,
				NakDelay:          nil,
				JetStream: wnats.JetStreamConfig{
					Disabled: true,
				},
			},
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create nats subscriber: %w", err)
		}

		return sub, nil
	}
}

func DefaultRouterFactory(logger watermill.LoggerAdapter) *message.Router {
	logger = logger.With(watermill.LogFields{
		"component": "flagsync.router",
	})

	return message.NewDefaultRouter(logger)
}
