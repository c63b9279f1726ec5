package sync

import (
	"context"
	"database/sql"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/store"
)

// mockStore is a seedable in-memory store covering what the exporter
// reads. Mutation methods exist to satisfy the interface.
type mockStore struct {
	events    []*model.Event
	relations map[string]*model.Relation           // by source event ID
	groups    map[string][]*model.AggregationGroup // by target event ID

	listEventsErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		relations: make(map[string]*model.Relation),
		groups:    make(map[string][]*model.AggregationGroup),
	}
}

func (m *mockStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	ev.StreamOrder = int64(len(m.events) + 1)
	if ev.TopologicalOrder == 0 {
		ev.TopologicalOrder = ev.StreamOrder
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockStore) GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error) {
	for _, ev := range m.events {
		if ev.RoomID == roomID && ev.ID == eventID {
			return ev, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	if m.listEventsErr != nil {
		return nil, m.listEventsErr
	}
	var out []*model.Event
	for _, ev := range m.events {
		if filter.RoomID != "" && ev.RoomID != filter.RoomID {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) MarkEventRedacted(ctx context.Context, eventID string) error {
	for _, ev := range m.events {
		if ev.ID == eventID {
			ev.Redacted = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockStore) CreateRelation(ctx context.Context, rel *model.Relation) error {
	m.relations[rel.SourceEventID] = rel
	return nil
}

func (m *mockStore) GetRelationBySource(ctx context.Context, sourceEventID string) (*model.Relation, error) {
	rel, ok := m.relations[sourceEventID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rel, nil
}

func (m *mockStore) ListRelations(ctx context.Context, filter model.RelationFilter) ([]*model.Relation, error) {
	var out []*model.Relation
	for _, rel := range m.relations {
		if rel.TargetEventID == filter.TargetEventID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (m *mockStore) ListRelationEvents(ctx context.Context, filter model.RelationFilter) ([]*model.Event, error) {
	return nil, nil
}

func (m *mockStore) MarkRelationStale(ctx context.Context, sourceEventID string) error {
	rel, ok := m.relations[sourceEventID]
	if !ok {
		return sql.ErrNoRows
	}
	rel.Stale = true
	return nil
}

func (m *mockStore) IncrementAggregation(ctx context.Context, targetEventID, eventType, key string, firstStream int64) error {
	return nil
}

func (m *mockStore) DecrementAggregation(ctx context.Context, targetEventID, eventType, key string) error {
	return nil
}

func (m *mockStore) ListAggregationGroups(ctx context.Context, filter model.GroupFilter) ([]*model.AggregationGroup, error) {
	return m.groups[filter.TargetEventID], nil
}

func (m *mockStore) AppendJournal(ctx context.Context, entry *model.JournalEntry) error {
	return nil
}

func (m *mockStore) ListJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	return nil, nil
}

func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }
