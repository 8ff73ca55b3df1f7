package app

import (
	"fmt"

	"go.uber.org/zap"

	"ridedispatch/internal/config"
	"ridedispatch/internal/events"
)

// NewPublisher returns the ride event publisher selected by EVENTS_BROKER.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		logger.Info("publishing ride events to rabbitmq", zap.String("exchange", cfg.RabbitMQExchange))
		return p, nil
	case config.BrokerKafka:
		logger.Info("publishing ride events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("kafka")), nil
	case config.BrokerNone, "":
		return events.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}
