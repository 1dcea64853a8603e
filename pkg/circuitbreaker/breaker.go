package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"raffle/internal/config"
	"raffle/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultInterval     = time.Minute
	defaultTimeout      = time.Minute
	defaultMinRequests  = 3
	defaultFailureRatio = 0.5
)

// Settings turns the service config into gobreaker settings. Zero values fall
// back to: trip once at least 3 requests in the interval failed half the time.
func Settings(name string, cfg config.CircuitBreakerConfig) gobreaker.Settings {
	s := gobreaker.Settings{
		Name:        name,
		MaxRequests: defaultMaxRequests,
		Interval:    defaultInterval,
		Timeout:     defaultTimeout,
	}
	if cfg.MaxRequests > 0 {
		s.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		s.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		s.Timeout = cfg.Timeout
	}

	minRequests, ratio := uint32(defaultMinRequests), defaultFailureRatio
	if cfg.MinRequests > 0 && cfg.FailureRatio > 0 {
		minRequests, ratio = cfg.MinRequests, cfg.FailureRatio
	}
	s.ReadyToTrip = func(c gobreaker.Counts) bool {
		return c.Requests >= minRequests && float64(c.TotalFailures)/float64(c.Requests) >= ratio
	}

	// A caller giving up is not a backend failure.
	s.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	return s
}

// Breaker guards calls to one remote dependency and reports its state to
// prometheus.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(s gobreaker.Settings) *Breaker {
	onChange := s.OnStateChange
	s.OnStateChange = func(name string, from, to gobreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(s)
	metrics.SetCircuitBreakerState(cb.Name(), int(cb.State()))
	return &Breaker{cb: cb}
}

func (b *Breaker) Name() string           { return b.cb.Name() }
func (b *Breaker) State() gobreaker.State { return b.cb.State() }
func (b *Breaker) Open() bool             { return b.cb.State() == gobreaker.StateOpen }

// Do runs fn through the breaker. A done ctx short-circuits without touching
// the breaker counts.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	metrics.ObserveCircuitBreakerRequest(b.cb.Name(), b.cb.State().String(), err == nil)
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}
