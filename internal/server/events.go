package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/knotline/knot/internal/events"
	"github.com/knotline/knot/internal/idgen"
	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/store"
)

// sendEventInput holds transport-agnostic parameters for sending an event.
type sendEventInput struct {
	RoomID   string          `json:"room_id"`
	Type     string          `json:"type"`
	StateKey *string         `json:"state_key,omitempty"`
	Sender   string          `json:"sender"`
	Content  json.RawMessage `json:"content"`
}

// sendEvent persists a plain (or state) event and publishes EventCreated.
// Returns inputError for validation failures.
func (s *KnotServer) sendEvent(ctx context.Context, in sendEventInput) (*model.Event, error) {
	if err := s.perms.CheckSend(ctx, in.RoomID, in.Sender); err != nil {
		return nil, err
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event ID: %w", err)
	}

	ev := &model.Event{
		ID:             id,
		RoomID:         in.RoomID,
		Type:           in.Type,
		StateKey:       in.StateKey,
		Sender:         in.Sender,
		OriginServerTS: time.Now().UTC().UnixMilli(),
		Content:        in.Content,
	}

	if err := model.ValidateEvent(ev); err != nil {
		return nil, inputError("invalid event: " + err.Error())
	}

	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicEventCreated, ev.ID, ev.RoomID, ev.Sender, events.EventCreated{Event: ev})
	s.recordActivity(ev)

	return ev, nil
}

// getEvent fetches one event and attaches its relation bundle when any
// relations exist. Persisted content is never touched.
func (s *KnotServer) getEvent(ctx context.Context, roomID, eventID string) (*model.Event, error) {
	ev, err := s.store.GetEvent(ctx, roomID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundError("event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	bundle, err := s.buildBundle(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if bundle != nil {
		ev.Unsigned = &model.Unsigned{Relations: bundle}
	}

	return ev, nil
}

// buildBundle assembles the unsigned relation summary for one event: the
// first page of annotation groups (count desc) plus every reference edge ID
// in chronological order. Returns nil when the event has no live relations.
func (s *KnotServer) buildBundle(ctx context.Context, eventID string) (*model.Bundle, error) {
	groups, err := s.store.ListAggregationGroups(ctx, model.GroupFilter{
		TargetEventID: eventID,
		Limit:         defaultPageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregation groups: %w", err)
	}

	refs, err := s.store.ListRelations(ctx, model.RelationFilter{
		TargetEventID: eventID,
		RelType:       model.RelReference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reference edges: %w", err)
	}

	if len(groups) == 0 && len(refs) == 0 {
		return nil, nil
	}

	bundle := &model.Bundle{}
	if len(groups) > 0 {
		bundle.Annotations = &model.GroupChunk{Chunk: groups}
	}
	if len(refs) > 0 {
		// Edge queries come back newest first; the bundle lists references
		// oldest first.
		chunk := make([]model.EventRef, 0, len(refs))
		for i := len(refs) - 1; i >= 0; i-- {
			chunk = append(chunk, model.EventRef{EventID: refs[i].SourceEventID})
		}
		bundle.References = &model.EventRefChunk{Chunk: chunk}
	}

	return bundle, nil
}

// redactEvent persists a redaction event and marks the target redacted in
// one transaction. When the target is itself a relation source, its edge
// goes stale and its annotation counter is decremented in the same
// transaction. Edges pointing at the target are left alone.
func (s *KnotServer) redactEvent(ctx context.Context, roomID, eventID, sender string) (*model.Event, error) {
	if sender == "" {
		return nil, inputError("sender is required")
	}
	if err := s.perms.CheckSend(ctx, roomID, sender); err != nil {
		return nil, err
	}

	if _, err := s.store.GetEvent(ctx, roomID, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundError("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event ID: %w", err)
	}

	content, err := json.Marshal(map[string]string{"redacts": eventID})
	if err != nil {
		return nil, fmt.Errorf("failed to build redaction content: %w", err)
	}

	redaction := &model.Event{
		ID:             id,
		RoomID:         roomID,
		Type:           model.EventTypeRedaction,
		Sender:         sender,
		OriginServerTS: time.Now().UTC().UnixMilli(),
		Content:        content,
	}

	var staleRel *model.Relation
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEvent(ctx, redaction); err != nil {
			return fmt.Errorf("failed to create redaction event: %w", err)
		}
		if err := tx.MarkEventRedacted(ctx, eventID); err != nil {
			return fmt.Errorf("failed to mark event redacted: %w", err)
		}

		rel, err := tx.GetRelationBySource(ctx, eventID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil // not a relation source
		}
		if err != nil {
			return fmt.Errorf("failed to look up relation: %w", err)
		}
		if rel.Stale {
			// Already counted out by an earlier redaction.
			return nil
		}

		if err := tx.MarkRelationStale(ctx, rel.SourceEventID); err != nil {
			return fmt.Errorf("failed to mark relation stale: %w", err)
		}
		if rel.RelType == model.RelAnnotation {
			if err := tx.DecrementAggregation(ctx, rel.TargetEventID, rel.EventType, rel.AggregationKey); err != nil {
				return fmt.Errorf("failed to decrement aggregation: %w", err)
			}
		}
		rel.Stale = true
		staleRel = rel
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicEventRedacted, eventID, roomID, sender, events.EventRedacted{
		EventID:       eventID,
		RoomID:        roomID,
		RedactedBy:    sender,
		StaleRelation: staleRel,
	})
	s.recordActivity(redaction)

	return redaction, nil
}
