package broker

import (
	"context"
	"fmt"

	"raffle/internal/config"
	"raffle/internal/logger"
	"raffle/pkg/models"
)

// Producer publishes envelopes to a topic. Errors marked with
// retry.Permanent must not be retried.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// NewProducer returns nil when no broker is configured; draw notifications
// are optional.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
