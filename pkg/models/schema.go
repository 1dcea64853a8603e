package models

import (
	apperrors "raffle/pkg/errors"
)

// required lists the payload keys each event type must carry.
var required = map[string][]string{
	EventTypeDrawCompleted: {"event_id", "draw_id", "snapshot_hash", "winner_ids"},
}

// Validate checks the envelope before it is published. Failures are
// validation errors naming the offending field.
func (m *MessageEnvelope) Validate() error {
	if m == nil {
		return invalid("envelope", "message envelope is nil")
	}

	for _, f := range []struct {
		name  string
		empty bool
	}{
		{"id", m.ID == ""},
		{"type", m.Type == ""},
		{"source", m.Source == ""},
		{"timestamp", m.Timestamp.IsZero()},
		{"payload", m.Payload == nil},
	} {
		if f.empty {
			return invalid(f.name, "%s is required", f.name)
		}
	}

	for _, key := range required[m.Type] {
		if _, ok := m.Payload[key]; !ok {
			return invalid("payload."+key, "%s event without %s", m.Type, key)
		}
	}
	return nil
}

func invalid(field, format string, args ...interface{}) error {
	return apperrors.ErrValidation.WithMessage(format, args...).WithDetail("field", field)
}
