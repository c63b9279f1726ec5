// Package client provides a transport-agnostic interface for the knot
// service and an HTTP/JSON implementation that talks to the knot REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/presence"
)

// KnotClient is the interface that all knot CLI commands use to
// communicate with the knot server. It is implemented by HTTPClient.
type KnotClient interface {
	// Events
	SendEvent(ctx context.Context, req *SendEventRequest) (string, error)
	SendStateEvent(ctx context.Context, req *SendStateEventRequest) (string, error)
	GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error)
	RedactEvent(ctx context.Context, roomID, eventID, sender string) (string, error)

	// Relations
	SendRelation(ctx context.Context, req *SendRelationRequest) (string, error)
	ListRelations(ctx context.Context, req *ListRelationsRequest) (*EventPage, error)
	ListAggregations(ctx context.Context, req *ListAggregationsRequest) (*GroupPage, error)
	ListGroupEvents(ctx context.Context, req *ListGroupEventsRequest) (*EventPage, error)

	// Operational surfaces
	Presence(ctx context.Context, staleThresholdSecs int) ([]presence.Entry, error)
	Journal(ctx context.Context, limit int) ([]*model.JournalEntry, error)
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// SendEventRequest holds parameters for sending a room event. RoomID and
// Type travel in the URL path; only Sender and Content form the body.
type SendEventRequest struct {
	RoomID  string          `json:"room_id"`
	Type    string          `json:"type"`
	Sender  string          `json:"sender"`
	Content json.RawMessage `json:"content,omitempty"`
}

// SendStateEventRequest holds parameters for sending a state event.
type SendStateEventRequest struct {
	RoomID   string          `json:"room_id"`
	Type     string          `json:"type"`
	StateKey string          `json:"state_key"`
	Sender   string          `json:"sender"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// SendRelationRequest holds parameters for sending an event that relates
// to an existing target.
type SendRelationRequest struct {
	RoomID        string          `json:"room_id"`
	TargetEventID string          `json:"target_event_id"`
	RelType       model.RelType   `json:"rel_type"`
	EventType     string          `json:"event_type"`
	Key           string          `json:"key,omitempty"`
	Sender        string          `json:"sender"`
	Content       json.RawMessage `json:"content,omitempty"`
}

// ListRelationsRequest holds parameters for paginating the children of a
// target event. RelType and EventType narrow the listing when set;
// EventType requires RelType.
type ListRelationsRequest struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType
	EventType     string
	From          string
	Limit         int
}

// ListAggregationsRequest holds parameters for paginating annotation
// groups on a target event.
type ListAggregationsRequest struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType // only m.annotation is accepted when set
	EventType     string
	From          string
	Limit         int
}

// ListGroupEventsRequest holds parameters for paginating the individual
// events inside one annotation group.
type ListGroupEventsRequest struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType
	EventType     string
	Key           string
	From          string
	Limit         int
}

// EventPage is one page of child events plus the token for the next.
type EventPage struct {
	Chunk     []*model.Event `json:"chunk"`
	NextBatch string         `json:"next_batch,omitempty"`
}

// GroupPage is one page of aggregation groups plus the token for the next.
type GroupPage struct {
	Chunk     []*model.AggregationGroup `json:"chunk"`
	NextBatch string                    `json:"next_batch,omitempty"`
}
