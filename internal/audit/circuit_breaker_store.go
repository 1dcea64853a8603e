package audit

import (
	"context"
	"fmt"

	"raffle/internal/config"
	"raffle/pkg/circuitbreaker"
)

// CircuitBreakerStore stops hammering a remote backend that keeps failing.
// An open breaker makes Append fail fast with AuditPersistenceError; the
// caller still gets its winners, flagged as unaudited.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Breaker
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{store: store}
	}
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.New(circuitbreaker.Settings("audit-"+store.Name(), cfg)),
	}
}

func (s *CircuitBreakerStore) Name() string {
	return s.store.Name()
}

func (s *CircuitBreakerStore) Append(ctx context.Context, rec Record) (string, error) {
	if s.cb == nil {
		return s.store.Append(ctx, rec)
	}

	location, err := circuitbreaker.Do(ctx, s.cb, func(ctx context.Context) (string, error) {
		return s.store.Append(ctx, rec)
	})
	if err != nil {
		if s.cb.Open() {
			return "", persistenceError(s.Name(), fmt.Errorf("circuit breaker is open for %s: %w", s.cb.Name(), err))
		}
		return "", persistenceError(s.Name(), err)
	}
	return location, nil
}

func (s *CircuitBreakerStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	if s.cb == nil {
		return s.store.List(ctx, eventID, limit)
	}
	return circuitbreaker.Do(ctx, s.cb, func(ctx context.Context) ([]Record, error) {
		return s.store.List(ctx, eventID, limit)
	})
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
