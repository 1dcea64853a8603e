package audit

import (
	"context"
	"time"

	"raffle/internal/drawconfig"
	apperrors "raffle/pkg/errors"
)

// Record is the immutable trace of one executed draw.
type Record struct {
	DrawID         string          `json:"draw_id"`
	EventID        string          `json:"event_id"`
	Seed           *int64          `json:"seed"`
	Config         drawconfig.Spec `json:"dsl"`
	SQL            string          `json:"sql"`
	SnapshotHash   string          `json:"snapshot_hash"`
	Timestamp      int64           `json:"ts"`
	CandidateCount int             `json:"candidate_count"`
	WinnerIDs      []string        `json:"winner_ids"`
}

func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// Store persists audit records. Implementations only ever insert; an
// existing record is never modified or replaced.
type Store interface {
	Append(ctx context.Context, rec Record) (string, error)
	List(ctx context.Context, eventID string, limit int) ([]Record, error)
	Name() string
}

// Verify recomputes the snapshot hash of ids and compares it to the record.
func Verify(rec Record, ids []string) error {
	got := SnapshotHash(ids)
	if got != rec.SnapshotHash {
		return apperrors.ErrValidation.
			WithMessage("snapshot hash mismatch: record has %s, population gives %s", rec.SnapshotHash, got).
			WithDetail("expected", rec.SnapshotHash).
			WithDetail("actual", got)
	}
	return nil
}

func persistenceError(backend string, err error) error {
	return apperrors.ErrAuditPersistence.
		WithCause(err).
		WithDetail("backend", backend)
}
