package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// kafkaBatchTimeout bounds how long a partial batch waits before it is flushed.
	kafkaBatchTimeout = 10 * time.Millisecond
	// kafkaDialTimeout bounds the metadata lookup Publish makes while the broker is unreachable.
	kafkaDialTimeout = 250 * time.Millisecond
)

// KafkaPublisher writes events keyed by ride id, so one ride's events stay
// ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates an asynchronous writer for the topic. Publish
// returns once the message is queued; delivery failures are logged.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           kafkaBatchTimeout,
			Async:                  true,
			Completion:             logDeliveryFailures(logger),
			Transport:              &kafka.Transport{DialTimeout: kafkaDialTimeout},
		},
	}
}

func logDeliveryFailures(logger *zap.Logger) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, len(messages))
		for i, m := range messages {
			keys[i] = string(m.Key)
		}
		logger.Warn("failed to deliver ride events",
			zap.Strings("ride_ids", keys),
			zap.Error(err),
		)
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event RideEvent) error {
	body, err := event.encode()
	if err != nil {
		return fmt.Errorf("failed to encode ride event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RideID),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "routing_key", Value: []byte(event.RoutingKey())},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", event.RoutingKey(), err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
