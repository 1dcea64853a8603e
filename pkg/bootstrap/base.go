package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"raffle/internal/broker"
	"raffle/internal/config"
	"raffle/internal/logger"
	"raffle/pkg/health"
)

// Base is the runtime shared by the HTTP service and the one-shot commands.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Health   *health.CheckerRegistry
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{Config: cfg, Logger: log, Health: health.NewCheckerRegistry()}
}

// InitBroker creates the draw event producer. With no broker configured the
// producer stays nil and draws are not announced.
func (b *Base) InitBroker() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("draw event producer: %w", err)
	}
	if producer == nil {
		return nil
	}

	b.Producer = producer
	b.Health.RegisterOptional(health.NewKafkaChecker(b.Config.Broker.Kafka.Brokers))
	return nil
}

// Notifier wraps the producer for the draw pipeline; nil without a broker.
func (b *Base) Notifier() *broker.DrawEventNotifier {
	if b.Producer == nil {
		return nil
	}
	return broker.NewDrawEventNotifier(b.Producer, b.Config.Broker.Kafka, b.Logger)
}

func (b *Base) CloseBroker() error {
	if b.Producer == nil {
		return nil
	}
	if err := b.Producer.Close(); err != nil {
		return fmt.Errorf("close producer: %w", err)
	}
	return nil
}

// Shutdown runs closers in order after closing the broker and joins every
// failure into one error.
func (b *Base) Shutdown(ctx context.Context, closers ...func(context.Context) error) error {
	b.Logger.Infow("Shutting down")

	errs := []error{b.CloseBroker()}
	for _, closeFn := range closers {
		errs = append(errs, closeFn(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	b.Logger.Infow("Shutdown complete")
	return nil
}
