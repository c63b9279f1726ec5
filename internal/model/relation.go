package model

// RelType classifies a relation edge. The set is open: the well-known
// types below get dedicated handling, anything else is stored and listed
// as-is.
type RelType string

const (
	// RelAnnotation is a keyed, countable relation (emoji reaction).
	RelAnnotation RelType = "m.annotation"
	// RelReference is a plain pointer relation (reply).
	RelReference RelType = "m.reference"
	// RelReplace marks the source as an edit of the target.
	RelReplace RelType = "m.replace"
)

func (r RelType) String() string {
	return string(r)
}

// IsValid reports whether the relation type is usable. Unknown types are
// allowed; only the empty string is rejected.
func (r RelType) IsValid() bool {
	return r != ""
}

// Relation is one edge from a relating (source) event to its target,
// indexed for reverse lookup. Edges are immutable after insert except for
// the Stale marker, set when the source event is redacted; rows are never
// deleted.
type Relation struct {
	SourceEventID  string  `json:"source_event_id"`
	TargetEventID  string  `json:"target_event_id"`
	RoomID         string  `json:"room_id"`
	RelType        RelType `json:"rel_type"`
	AggregationKey string  `json:"aggregation_key,omitempty"`
	EventType      string  `json:"event_type"`
	Sender         string  `json:"sender"`
	OriginServerTS int64   `json:"origin_server_ts"`
	Stale          bool    `json:"stale,omitempty"`

	// Positions copied from the source event so pages can be served from
	// the relation index alone.
	TopologicalOrder int64 `json:"-"`
	StreamOrder      int64 `json:"-"`
}
