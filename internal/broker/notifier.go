package broker

import (
	"context"
	"time"

	"raffle/internal/config"
	"raffle/internal/constants"
	"raffle/internal/logger"
	"raffle/pkg/logging"
	"raffle/pkg/metrics"
	"raffle/pkg/models"
	"raffle/pkg/retry"
)

// DrawEventNotifier publishes draw.completed events. Publishing is retried
// with exponential backoff; audit writes never go through here.
type DrawEventNotifier struct {
	producer Producer
	topic    string
	policy   retry.Policy
	logger   logger.Logger
}

func NewDrawEventNotifier(producer Producer, cfg config.KafkaConfig, log logger.Logger) *DrawEventNotifier {
	topic := cfg.DrawEventsTopic
	if topic == "" {
		topic = constants.DefaultDrawEventsTopic
	}
	return &DrawEventNotifier{
		producer: producer,
		topic:    topic,
		policy:   retry.FromConfig(cfg.Retry),
		logger:   log,
	}
}

func (n *DrawEventNotifier) Topic() string {
	return n.topic
}

func (n *DrawEventNotifier) NotifyDrawCompleted(ctx context.Context, event models.DrawCompletedEvent) error {
	if n.producer == nil {
		return nil
	}

	envelope := event.Envelope(constants.DrawEventSource, models.Metadata{
		TraceID:   logging.GetTraceID(ctx),
		RequestID: logging.GetRequestID(ctx),
	})

	return retry.Do(ctx, n.policy, func() error {
		return n.producer.Publish(ctx, n.topic, *envelope)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt(constants.DrawEventSource, n.topic)
		n.logger.WarnwCtx(ctx, "Retrying draw event publish",
			"attempt", attempt,
			"max_attempts", n.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", n.topic,
		)
	})
}

func (n *DrawEventNotifier) Close() error {
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}
