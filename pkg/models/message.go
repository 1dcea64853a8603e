package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageEnvelope is the wire format of every event the service publishes.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	DrawID    string `json:"draw_id,omitempty"`
}

// NewEnvelope wraps payload with a fresh id and the current UTC time. A nil
// payload becomes an empty one.
func NewEnvelope(eventType, source string, payload map[string]interface{}, meta Metadata) *MessageEnvelope {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &MessageEnvelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Metadata:  meta,
	}
}
