package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/knotline/knot/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		stateKey sql.NullString
		content  []byte
	)

	err := row.Scan(
		&e.ID,
		&e.RoomID,
		&e.Type,
		&stateKey,
		&e.Sender,
		&e.OriginServerTS,
		&content,
		&e.Redacted,
		&e.TopologicalOrder,
		&e.StreamOrder,
	)
	if err != nil {
		return nil, err
	}

	if stateKey.Valid {
		s := stateKey.String
		e.StateKey = &s
	}
	if len(content) > 0 {
		e.Content = json.RawMessage(content)
	}

	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanRelation scans a single row into a model.Relation.
// The row must contain columns in the order defined by relationColumns.
func scanRelation(row scannable) (*model.Relation, error) {
	var r model.Relation
	var key sql.NullString

	err := row.Scan(
		&r.SourceEventID,
		&r.TargetEventID,
		&r.RoomID,
		&r.RelType,
		&key,
		&r.EventType,
		&r.Sender,
		&r.OriginServerTS,
		&r.Stale,
		&r.TopologicalOrder,
		&r.StreamOrder,
	)
	if err != nil {
		return nil, err
	}

	r.AggregationKey = key.String
	return &r, nil
}

// scanRelations scans multiple rows into a slice of model.Relation pointers.
func scanRelations(rows *sql.Rows) ([]*model.Relation, error) {
	var relations []*model.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return relations, nil
}

// scanGroup scans a single row into a model.AggregationGroup.
func scanGroup(row scannable) (*model.AggregationGroup, error) {
	var g model.AggregationGroup
	err := row.Scan(
		&g.TargetEventID,
		&g.EventType,
		&g.Key,
		&g.Count,
		&g.FirstStreamOrder,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// scanGroups scans multiple rows into a slice of model.AggregationGroup pointers.
func scanGroups(rows *sql.Rows) ([]*model.AggregationGroup, error) {
	var groups []*model.AggregationGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// scanJournalEntry scans a single row into a model.JournalEntry.
func scanJournalEntry(row scannable) (*model.JournalEntry, error) {
	var j model.JournalEntry
	var (
		eventID sql.NullString
		roomID  sql.NullString
		actor   sql.NullString
		payload []byte
	)

	err := row.Scan(&j.ID, &j.Topic, &eventID, &roomID, &actor, &payload, &j.CreatedAt)
	if err != nil {
		return nil, err
	}

	j.EventID = eventID.String
	j.RoomID = roomID.String
	j.Actor = actor.String
	if len(payload) > 0 {
		j.Payload = json.RawMessage(payload)
	}

	return &j, nil
}

// scanJournalEntries scans multiple rows into a slice of model.JournalEntry pointers.
func scanJournalEntries(rows *sql.Rows) ([]*model.JournalEntry, error) {
	var entries []*model.JournalEntry
	for rows.Next() {
		j, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringPtr converts a *string to sql.NullString.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
