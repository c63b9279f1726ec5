package model

import (
	"encoding/json"
	"time"
)

// JournalEntry is an audit record of a state-changing operation, mirroring
// what is published to NATS. Appended best-effort after commit.
type JournalEntry struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
