package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"raffle/internal/constants"
	"raffle/pkg/metrics"
)

// PostgresStore inserts into draw_audits. The table rejects UPDATE and DELETE
// with a trigger.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string {
	return constants.AuditBackendPostgres
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) (string, error) {
	query := `
		INSERT INTO draw_audits (draw_id, event_id, seed, dsl, sql, snapshot_hash, ts, candidate_count, winner_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	drawID := rec.DrawID
	if drawID == "" {
		drawID = uuid.New().String()
	}

	dslJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to encode dsl: %w", err))
	}
	winnersJSON, err := json.Marshal(nonNil(rec.WinnerIDs))
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to encode winners: %w", err))
	}

	var seed sql.NullInt64
	if rec.Seed != nil {
		seed = sql.NullInt64{Int64: *rec.Seed, Valid: true}
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, query,
		drawID, rec.EventID, seed, dslJSON, rec.SQL,
		rec.SnapshotHash, rec.Timestamp, rec.CandidateCount, winnersJSON,
	)
	s.observe("insert", start, err)
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to insert audit record: %w", err))
	}

	return fmt.Sprintf("postgres:draw_audits/%s", drawID), nil
}

func (s *PostgresStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	query := `
		SELECT draw_id, event_id, seed, dsl, sql, snapshot_hash, ts, candidate_count, winner_ids
		FROM draw_audits
		WHERE ($1 = '' OR event_id = $1)
		ORDER BY ts DESC, id DESC
		LIMIT $2
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, eventID, listLimit(limit))
	s.observe("select", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec       Record
			seed      sql.NullInt64
			dslJSON   []byte
			winnerIDs []byte
		)
		if err := rows.Scan(&rec.DrawID, &rec.EventID, &seed, &dslJSON, &rec.SQL,
			&rec.SnapshotHash, &rec.Timestamp, &rec.CandidateCount, &winnerIDs); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if seed.Valid {
			v := seed.Int64
			rec.Seed = &v
		}
		if err := json.Unmarshal(dslJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to decode dsl of draw %s: %w", rec.DrawID, err)
		}
		if err := json.Unmarshal(winnerIDs, &rec.WinnerIDs); err != nil {
			return nil, fmt.Errorf("failed to decode winners of draw %s: %w", rec.DrawID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("audit", s.Name(), operation, status)
	metrics.ObserveDatabaseQueryDuration("audit", s.Name(), operation, time.Since(start))
}

func listLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		return constants.MaxLimit
	}
	return limit
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
