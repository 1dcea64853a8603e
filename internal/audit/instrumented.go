package audit

import (
	"context"
	"time"

	"raffle/internal/logger"
	"raffle/pkg/metrics"
	"raffle/pkg/tracing"
)

// InstrumentedStore adds tracing, metrics and logs around any Store.
type InstrumentedStore struct {
	store  Store
	logger logger.Logger
}

func NewInstrumentedStore(store Store, log logger.Logger) *InstrumentedStore {
	return &InstrumentedStore{store: store, logger: log}
}

func (s *InstrumentedStore) Name() string {
	return s.store.Name()
}

func (s *InstrumentedStore) Append(ctx context.Context, rec Record) (string, error) {
	ctx, span := tracing.Start(ctx, "audit.append")
	defer span.End()

	start := time.Now()
	location, err := s.store.Append(ctx, rec)
	metrics.ObserveAuditWriteDuration(s.Name(), time.Since(start))

	if err != nil {
		tracing.Fail(span, err)
		metrics.IncAuditWrite(s.Name(), "error")
		s.logger.ErrorwCtx(ctx, "Failed to persist audit record",
			"backend", s.Name(),
			"draw_id", rec.DrawID,
			"error", err,
		)
		return "", err
	}

	metrics.IncAuditWrite(s.Name(), "success")
	s.logger.InfowCtx(ctx, "Audit record persisted",
		"backend", s.Name(),
		"draw_id", rec.DrawID,
		"location", location,
		"snapshot_hash", rec.SnapshotHash,
	)
	return location, nil
}

func (s *InstrumentedStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	ctx, span := tracing.Start(ctx, "audit.list")
	defer span.End()

	records, err := s.store.List(ctx, eventID, limit)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	return records, nil
}
