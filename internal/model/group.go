package model

// AggregationGroup is a live annotation counter keyed by
// (target_event_id, event_type, aggregation_key). Created with count 1 on
// the first matching edge, incremented per edge, decremented when a
// contributing edge goes stale, removed at zero.
//
// The JSON form is the wire shape served in aggregation pages and bundles:
// {"type": ..., "key": ..., "count": ...}.
type AggregationGroup struct {
	TargetEventID string `json:"-"`
	EventType     string `json:"type"`
	Key           string `json:"key"`
	Count         int64  `json:"count"`

	// FirstStreamOrder is the stream position of the edge that created the
	// group. It breaks count ties deterministically: earliest group first.
	FirstStreamOrder int64 `json:"-"`
}
