// Package eventsource provides durable, append-only event streams with
// optimistic concurrency. A ledger's notification history is one stream;
// replaying it rebuilds the ledger state. Backends cover in-memory use,
// SQLite and PostgreSQL behind the same Store contract.
package eventsource

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single durable record in a stream. Version is assigned by the
// store on append; IDs are globally unique.
type Event struct {
	ID        string          `json:"id"`
	StreamID  string          `json:"stream_id"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an event for the given stream with a JSON-encoded
// payload. The version is left unset until the event is appended.
func NewEvent(streamID, eventType string, data any) (*Event, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding event data: %w", err)
		}
		raw = encoded
	}

	return &Event{
		ID:        uuid.New().String(),
		StreamID:  streamID,
		Type:      eventType,
		Version:   -1,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.ID)
	}
	return json.Unmarshal(e.Data, v)
}
