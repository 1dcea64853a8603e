package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"raffle/internal/config"
	"raffle/internal/constants"
	"raffle/internal/logger"
	"raffle/pkg/metrics"
	"raffle/pkg/models"
	"raffle/pkg/retry"
	"raffle/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if err := msg.Validate(); err != nil {
		return retry.Permanent(err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal message: %w", err))
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(msg.Type)}}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(msg.Metadata.EventID),
			Value:   body,
			Headers: headers,
			Time:    msg.Timestamp,
		},
	)
	metrics.ObserveKafkaWriteDuration(constants.DrawEventSource, topic, time.Since(start))

	if err != nil {
		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && !kafkaErr.Temporary() {
			return retry.Permanent(fmt.Errorf("failed to write kafka message: %w", err))
		}
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(constants.DrawEventSource, topic)
	metrics.ObserveKafkaMessageSize(constants.DrawEventSource, topic, "out", len(body))
	p.logger.DebugwCtx(ctx, "Message written to Kafka",
		"topic", topic,
		"message_id", msg.ID,
		"size_bytes", len(body),
	)

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
