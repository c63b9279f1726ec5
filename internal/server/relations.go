package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/knotline/knot/internal/cursor"
	"github.com/knotline/knot/internal/events"
	"github.com/knotline/knot/internal/idgen"
	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/store"
)

// Pagination bounds shared by the relation, aggregation, and group queries.
const (
	defaultPageLimit = 5
	maxPageLimit     = 100
)

// clampLimit normalizes a requested page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// sendRelationInput holds transport-agnostic parameters for relating an
// event to a target.
type sendRelationInput struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType
	EventType     string
	Key           string
	Sender        string
	Content       json.RawMessage
}

// sendRelation validates the relation against its target, persists the
// relating event, the relation index row, and (for annotations) the
// aggregation counter in one transaction, then publishes RelationCreated.
//
// Eligibility rules run in order before anything is written: the target
// must resolve (NotFoundError), must not be a membership event, must not be
// redacted, and a reaction annotation needs a non-empty key (each
// InvalidRelationError). A rejected relation leaves no trace in the store.
func (s *KnotServer) sendRelation(ctx context.Context, in sendRelationInput) (*model.Event, error) {
	if in.Sender == "" {
		return nil, inputError("sender is required")
	}
	if err := s.perms.CheckSend(ctx, in.RoomID, in.Sender); err != nil {
		return nil, err
	}

	target, err := s.store.GetEvent(ctx, in.RoomID, in.TargetEventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundError("target event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target event: %w", err)
	}
	if target.IsMembership() {
		return nil, model.InvalidRelationError("cannot relate to a membership event")
	}
	if target.Redacted {
		return nil, model.InvalidRelationError("cannot relate to a redacted event")
	}
	if err := model.ValidateRelationShape(in.RelType, in.EventType, in.Key); err != nil {
		return nil, err
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event ID: %w", err)
	}

	content, err := model.AttachRelatesTo(in.Content, &model.RelatesTo{
		EventID: in.TargetEventID,
		Key:     in.Key,
		RelType: in.RelType,
	})
	if err != nil {
		return nil, inputError("content must be a JSON object")
	}

	ev := &model.Event{
		ID:             id,
		RoomID:         in.RoomID,
		Type:           in.EventType,
		Sender:         in.Sender,
		OriginServerTS: time.Now().UTC().UnixMilli(),
		Content:        content,
	}
	if err := model.ValidateEvent(ev); err != nil {
		return nil, inputError("invalid event: " + err.Error())
	}

	// Only annotations carry a grouping key in the index.
	aggKey := ""
	if in.RelType == model.RelAnnotation {
		aggKey = in.Key
	}

	rel := &model.Relation{
		SourceEventID:  ev.ID,
		TargetEventID:  in.TargetEventID,
		RoomID:         in.RoomID,
		RelType:        in.RelType,
		AggregationKey: aggKey,
		EventType:      in.EventType,
		Sender:         in.Sender,
		OriginServerTS: ev.OriginServerTS,
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		rel.TopologicalOrder = ev.TopologicalOrder
		rel.StreamOrder = ev.StreamOrder
		if err := tx.CreateRelation(ctx, rel); err != nil {
			return fmt.Errorf("failed to create relation: %w", err)
		}
		if rel.RelType == model.RelAnnotation {
			if err := tx.IncrementAggregation(ctx, rel.TargetEventID, rel.EventType, rel.AggregationKey, rel.StreamOrder); err != nil {
				return fmt.Errorf("failed to increment aggregation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicRelationCreated, ev.ID, ev.RoomID, ev.Sender, events.RelationCreated{
		Relation: rel,
		Event:    ev,
	})
	s.recordActivity(ev)

	return ev, nil
}

// requireTarget resolves the paginated query's target event.
func (s *KnotServer) requireTarget(ctx context.Context, roomID, eventID string) error {
	_, err := s.store.GetEvent(ctx, roomID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFoundError("target event not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get target event: %w", err)
	}
	return nil
}

// listRelationsInput holds transport-agnostic parameters for the edge
// pagination queries.
type listRelationsInput struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType
	EventType     string
	Key           string
	From          string
	Limit         int
}

// listRelations returns one page of relation source events for a target,
// newest first, with an opaque token for the next page when one exists.
func (s *KnotServer) listRelations(ctx context.Context, in listRelationsInput) ([]*model.Event, string, error) {
	if err := s.requireTarget(ctx, in.RoomID, in.TargetEventID); err != nil {
		return nil, "", err
	}
	return s.pageRelationEvents(ctx, in, cursor.ShapeRelations)
}

// listGroupEvents returns one page of the events inside a single
// (event_type, key) annotation group. Target resolution runs first, so a
// missing target reports NotFound even when the relation type is wrong.
func (s *KnotServer) listGroupEvents(ctx context.Context, in listRelationsInput) ([]*model.Event, string, error) {
	if err := s.requireTarget(ctx, in.RoomID, in.TargetEventID); err != nil {
		return nil, "", err
	}
	if in.RelType != model.RelAnnotation {
		return nil, "", model.InvalidRelationError("group pagination is only defined for m.annotation relations")
	}
	return s.pageRelationEvents(ctx, in, cursor.ShapeGroupEvents)
}

// pageRelationEvents runs one watermarked page query over the relation
// index. The token shape and filter hash bind each token to the exact query
// that issued it; a token from any other query is rejected.
func (s *KnotServer) pageRelationEvents(ctx context.Context, in listRelationsInput, shape cursor.Shape) ([]*model.Event, string, error) {
	limit := clampLimit(in.Limit)
	filterHash := cursor.HashFilter(in.RoomID, in.TargetEventID, string(in.RelType), in.EventType, in.Key)

	filter := model.RelationFilter{
		TargetEventID: in.TargetEventID,
		RelType:       in.RelType,
		EventType:     in.EventType,
		Key:           in.Key,
		Limit:         limit + 1,
	}

	if in.From != "" {
		c, err := cursor.Decode(in.From)
		if err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		if err := c.ValidateShape(shape); err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		if err := c.ValidateFilter(filterHash); err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		filter.Before = &model.StreamPosition{Topological: c.Topological, Stream: c.Stream}
	}

	evs, err := s.store.ListRelationEvents(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list relation events: %w", err)
	}

	next := ""
	if len(evs) > limit {
		evs = evs[:limit]
		last := evs[limit-1]
		var c *cursor.Cursor
		if shape == cursor.ShapeGroupEvents {
			c = cursor.ForGroupEvents(filterHash, last.TopologicalOrder, last.StreamOrder)
		} else {
			c = cursor.ForRelations(filterHash, last.TopologicalOrder, last.StreamOrder)
		}
		next, err = c.Encode()
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode next token: %w", err)
		}
	}

	return evs, next, nil
}

// listAggregationsInput holds transport-agnostic parameters for group
// pagination.
type listAggregationsInput struct {
	RoomID        string
	TargetEventID string
	RelType       model.RelType
	EventType     string
	From          string
	Limit         int
}

// listAggregations returns one page of annotation groups for a target,
// ordered by count desc with ties broken by earliest creation. Counting is
// only defined for annotations; any other relation type is rejected.
func (s *KnotServer) listAggregations(ctx context.Context, in listAggregationsInput) ([]*model.AggregationGroup, string, error) {
	if err := s.requireTarget(ctx, in.RoomID, in.TargetEventID); err != nil {
		return nil, "", err
	}
	if in.RelType != "" && in.RelType != model.RelAnnotation {
		return nil, "", model.InvalidRelationError("aggregations are only defined for m.annotation relations")
	}

	limit := clampLimit(in.Limit)
	filterHash := cursor.HashFilter(in.RoomID, in.TargetEventID, string(model.RelAnnotation), in.EventType)

	filter := model.GroupFilter{
		TargetEventID: in.TargetEventID,
		EventType:     in.EventType,
		Limit:         limit + 1,
	}

	if in.From != "" {
		c, err := cursor.Decode(in.From)
		if err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		if err := c.ValidateShape(cursor.ShapeGroups); err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		if err := c.ValidateFilter(filterHash); err != nil {
			return nil, "", model.InvalidCursorError(err.Error())
		}
		filter.After = &model.GroupPosition{Count: c.Count, FirstStream: c.FirstStream}
	}

	groups, err := s.store.ListAggregationGroups(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list aggregation groups: %w", err)
	}

	next := ""
	if len(groups) > limit {
		groups = groups[:limit]
		last := groups[limit-1]
		next, err = cursor.ForGroups(filterHash, last.Count, last.FirstStreamOrder).Encode()
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode next token: %w", err)
		}
	}

	return groups, next, nil
}
