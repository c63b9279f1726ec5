// Package sync exports the relation store as JSONL snapshots and ships
// them to configured destinations on an interval.
package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/store"
)

// header is the first line of every export.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	EventCount    int       `json:"event_count"`
	RelationCount int       `json:"relation_count"`
	GroupCount    int       `json:"group_count"`
}

// record wraps a single exported row with its kind.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// groupRecord carries the target alongside the group fields, which the
// wire shape omits because it is implied by the request path.
type groupRecord struct {
	TargetEventID string `json:"target_event_id"`
	*model.AggregationGroup
}

// ExportJSONL writes all events, relation edges, and aggregation groups
// as JSON Lines. The first line is a header with counts, followed by one
// record per row. Events appear in insertion order; stale edges are
// included so the export is a faithful audit trail.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	events, err := s.ListEvents(ctx, model.EventFilter{})
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	var relations []*model.Relation
	var groups []*groupRecord
	for _, ev := range events {
		rel, err := s.GetRelationBySource(ctx, ev.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return fmt.Errorf("get relation for %s: %w", ev.ID, err)
		}
		relations = append(relations, rel)
	}
	for _, ev := range events {
		gs, err := s.ListAggregationGroups(ctx, model.GroupFilter{TargetEventID: ev.ID})
		if err != nil {
			return fmt.Errorf("list groups for %s: %w", ev.ID, err)
		}
		for _, g := range gs {
			groups = append(groups, &groupRecord{TargetEventID: ev.ID, AggregationGroup: g})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	hdr := header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		EventCount:    len(events),
		RelationCount: len(relations),
		GroupCount:    len(groups),
	}
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, ev := range events {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}
	for _, rel := range relations {
		if err := enc.Encode(record{Type: "relation", Data: rel}); err != nil {
			return fmt.Errorf("encode relation %s: %w", rel.SourceEventID, err)
		}
	}
	for _, g := range groups {
		if err := enc.Encode(record{Type: "group", Data: g}); err != nil {
			return fmt.Errorf("encode group %s/%s: %w", g.TargetEventID, g.Key, err)
		}
	}
	return nil
}
