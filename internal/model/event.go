package model

import (
	"encoding/json"
)

// Well-known event types. The set is open; these are the ones the engine
// treats specially.
const (
	// EventTypeMessage is a plain room message.
	EventTypeMessage = "m.room.message"
	// EventTypeMember is a membership state change. Membership events are
	// never eligible relation targets.
	EventTypeMember = "m.room.member"
	// EventTypeReaction is the annotation wrapper type that requires an
	// aggregation key.
	EventTypeReaction = "m.reaction"
	// EventTypeRedaction is persisted when an event is redacted.
	EventTypeRedaction = "m.room.redaction"
)

// RelatesToKey is the reserved content field carrying the relation
// descriptor on a relating event.
const RelatesToKey = "m.relates_to"

// Event is a single room event. Content is stored verbatim; Unsigned is
// derived on read and never persisted.
type Event struct {
	ID             string          `json:"event_id"`
	RoomID         string          `json:"room_id"`
	Type           string          `json:"type"`
	StateKey       *string         `json:"state_key,omitempty"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	Redacted       bool            `json:"redacted,omitempty"`

	// Ordering positions assigned by the store at insert. Stream order is
	// a monotone insert sequence; topological order defaults to it when no
	// federated ordering is supplied.
	TopologicalOrder int64 `json:"-"`
	StreamOrder      int64 `json:"-"`

	// Derived data -- populated on read paths, never written back.
	Unsigned *Unsigned `json:"unsigned,omitempty"`
}

// IsMembership reports whether the event is a membership state change.
func (e *Event) IsMembership() bool {
	return e.Type == EventTypeMember
}

// RelatesTo is the relation descriptor embedded in a relating event's
// content under RelatesToKey.
type RelatesTo struct {
	EventID string  `json:"event_id"`
	Key     string  `json:"key,omitempty"`
	RelType RelType `json:"rel_type"`
}

// AttachRelatesTo merges the relation descriptor into an event content
// document, replacing any descriptor already present. A nil or empty
// content is treated as an empty object.
func AttachRelatesTo(content json.RawMessage, rt *RelatesTo) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(rt)
	if err != nil {
		return nil, err
	}
	doc[RelatesToKey] = raw
	return json.Marshal(doc)
}

// Unsigned holds the non-authenticated metadata attached to a served event.
type Unsigned struct {
	Relations *Bundle `json:"m.relations,omitempty"`
}

// Bundle is the relation summary attached under unsigned["m.relations"]:
// the first page of annotation counts plus the full reference list.
type Bundle struct {
	Annotations *GroupChunk    `json:"m.annotation,omitempty"`
	References  *EventRefChunk `json:"m.reference,omitempty"`
}

// GroupChunk wraps an ordered list of aggregation groups.
type GroupChunk struct {
	Chunk []*AggregationGroup `json:"chunk"`
}

// EventRefChunk wraps an ordered list of referencing event IDs.
type EventRefChunk struct {
	Chunk []EventRef `json:"chunk"`
}

// EventRef identifies one referencing event inside a bundle.
type EventRef struct {
	EventID string `json:"event_id"`
}
