package events

import (
	"context"
	"time"

	"github.com/knotline/knot/internal/model"
)

// Event topic constants
const (
	TopicEventCreated    = "knot.event.created"
	TopicRelationCreated = "knot.relation.created"
	TopicEventRedacted   = "knot.event.redacted"

	// Presence events (emitted by the reaper when a sender goes quiet).
	TopicSenderOffline = "knot.sender.offline"
)

// Event types

type EventCreated struct {
	Event *model.Event `json:"event"`
}

type RelationCreated struct {
	Relation *model.Relation `json:"relation"`
	Event    *model.Event    `json:"event"`
}

type EventRedacted struct {
	EventID    string `json:"event_id"`
	RoomID     string `json:"room_id"`
	RedactedBy string `json:"redacted_by,omitempty"`
	// StaleRelation is set when the redacted event was a relation source.
	StaleRelation *model.Relation `json:"stale_relation,omitempty"`
}

type SenderOffline struct {
	Sender   string    `json:"sender"`
	LastSeen time.Time `json:"last_seen"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
