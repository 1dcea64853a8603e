package models

const EventTypeDrawCompleted = "draw.completed"

// DrawCompletedEvent is published once a draw has been audited. It carries
// identifiers only; the full record stays in the audit store.
type DrawCompletedEvent struct {
	EventID        string   `json:"event_id"`
	DrawID         string   `json:"draw_id"`
	WinnerIDs      []string `json:"winner_ids"`
	CandidateCount int      `json:"candidate_count"`
	SnapshotHash   string   `json:"snapshot_hash"`
	Seed           *int64   `json:"seed"`
	AuditLocation  string   `json:"audit_location"`
	Timestamp      int64    `json:"ts"`
}

func (e DrawCompletedEvent) Payload() map[string]interface{} {
	winners := make([]interface{}, len(e.WinnerIDs))
	for i, id := range e.WinnerIDs {
		winners[i] = id
	}

	var seed interface{}
	if e.Seed != nil {
		seed = *e.Seed
	}

	return map[string]interface{}{
		"event_id":        e.EventID,
		"draw_id":         e.DrawID,
		"winner_ids":      winners,
		"candidate_count": e.CandidateCount,
		"snapshot_hash":   e.SnapshotHash,
		"seed":            seed,
		"audit_location":  e.AuditLocation,
		"ts":              e.Timestamp,
	}
}

// Envelope wraps the event for publishing. The raffle and draw ids in meta
// are always taken from the event.
func (e DrawCompletedEvent) Envelope(source string, meta Metadata) *MessageEnvelope {
	meta.EventID = e.EventID
	meta.DrawID = e.DrawID
	return NewEnvelope(EventTypeDrawCompleted, source, e.Payload(), meta)
}
