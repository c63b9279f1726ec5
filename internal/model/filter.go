package model

// StreamPosition is a point in the room's reverse-chronological edge
// stream. Pages resume strictly below it.
type StreamPosition struct {
	Topological int64 `json:"topological"`
	Stream      int64 `json:"stream"`
}

// GroupPosition is a point in the count-ranked group stream
// (count desc, first_stream_order asc). Pages resume strictly after it.
type GroupPosition struct {
	Count       int64 `json:"count"`
	FirstStream int64 `json:"first_stream"`
}

// RelationFilter holds criteria for querying relation edges.
type RelationFilter struct {
	TargetEventID string          `json:"target_event_id,omitempty"`
	RelType       RelType         `json:"rel_type,omitempty"`
	EventType     string          `json:"event_type,omitempty"`
	Key           string          `json:"key,omitempty"` // implies rel_type m.annotation
	Before        *StreamPosition `json:"before,omitempty"`
	IncludeStale  bool            `json:"include_stale,omitempty"` // audit/export reads only
	Limit         int             `json:"limit,omitempty"` // 0 = no limit
}

// GroupFilter holds criteria for querying aggregation groups.
type GroupFilter struct {
	TargetEventID string         `json:"target_event_id"`
	EventType     string         `json:"event_type,omitempty"`
	After         *GroupPosition `json:"after,omitempty"`
	Limit         int            `json:"limit,omitempty"` // 0 = no limit
}

// EventFilter holds criteria for listing events in insert order
// (export and room reads).
type EventFilter struct {
	RoomID string `json:"room_id,omitempty"`
	Limit  int    `json:"limit,omitempty"` // 0 = no limit
}
