package store

import (
	"context"

	"github.com/knotline/knot/internal/model"
)

// Store defines the persistence interface for events, relation edges, and
// aggregation counters. Missing rows surface as sql.ErrNoRows; callers
// translate at their own boundary.
type Store interface {
	// Events
	CreateEvent(ctx context.Context, ev *model.Event) error // assigns stream/topological order on ev
	GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) // insert order
	MarkEventRedacted(ctx context.Context, eventID string) error

	// Relation edges
	CreateRelation(ctx context.Context, rel *model.Relation) error
	GetRelationBySource(ctx context.Context, sourceEventID string) (*model.Relation, error)
	ListRelations(ctx context.Context, filter model.RelationFilter) ([]*model.Relation, error)
	ListRelationEvents(ctx context.Context, filter model.RelationFilter) ([]*model.Event, error) // source events, newest first
	MarkRelationStale(ctx context.Context, sourceEventID string) error

	// Aggregation counters
	IncrementAggregation(ctx context.Context, targetEventID, eventType, key string, firstStream int64) error
	DecrementAggregation(ctx context.Context, targetEventID, eventType, key string) error
	ListAggregationGroups(ctx context.Context, filter model.GroupFilter) ([]*model.AggregationGroup, error)

	// Audit journal
	AppendJournal(ctx context.Context, entry *model.JournalEntry) error
	ListJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
