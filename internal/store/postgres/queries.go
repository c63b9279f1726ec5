package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/knotline/knot/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `event_id, room_id, event_type, state_key, sender,
	origin_server_ts, content, redacted, topological_order, stream_order`

// joinedEventColumns mirrors eventColumns under the alias used when joining
// relations against their source events.
const joinedEventColumns = `e.event_id, e.room_id, e.event_type, e.state_key, e.sender,
	e.origin_server_ts, e.content, e.redacted, e.topological_order, e.stream_order`

// relationColumns is the column list used for SELECT statements on the relations table.
const relationColumns = `source_event_id, target_event_id, room_id, rel_type,
	aggregation_key, event_type, sender, origin_server_ts, stale,
	topological_order, stream_order`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateEvent(ctx context.Context, db executor, ev *model.Event) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO events (
			event_id, room_id, event_type, state_key, sender,
			origin_server_ts, content, redacted, topological_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING stream_order`,
		ev.ID,
		ev.RoomID,
		ev.Type,
		nullStringPtr(ev.StateKey),
		ev.Sender,
		ev.OriginServerTS,
		jsonbBytes(ev.Content),
		ev.Redacted,
		ev.TopologicalOrder,
	).Scan(&ev.StreamOrder)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	// Locally created events take their topological position from the
	// stream position assigned above.
	if ev.TopologicalOrder == 0 {
		err = db.QueryRowContext(ctx, `
			UPDATE events SET topological_order = stream_order
			WHERE event_id = $1
			RETURNING topological_order`,
			ev.ID,
		).Scan(&ev.TopologicalOrder)
		if err != nil {
			return fmt.Errorf("assign topological order: %w", err)
		}
	}

	return nil
}

func queryGetEvent(ctx context.Context, db executor, roomID, eventID string) (*model.Event, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE room_id = $1 AND event_id = $2`,
		roomID, eventID,
	)
	return scanEvent(row)
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.RoomID != "" {
		whereClauses = append(whereClauses, "room_id = "+nextArg())
		args = append(args, filter.RoomID)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query := `SELECT ` + eventColumns + ` FROM events` + whereSQL + ` ORDER BY stream_order ASC`
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryMarkEventRedacted(ctx context.Context, db executor, eventID string) error {
	res, err := db.ExecContext(ctx, `UPDATE events SET redacted = TRUE WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateRelation(ctx context.Context, db executor, rel *model.Relation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO relations (
			source_event_id, target_event_id, room_id, rel_type,
			aggregation_key, event_type, sender, origin_server_ts,
			topological_order, stream_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rel.SourceEventID,
		rel.TargetEventID,
		rel.RoomID,
		string(rel.RelType),
		nullString(rel.AggregationKey),
		rel.EventType,
		rel.Sender,
		rel.OriginServerTS,
		rel.TopologicalOrder,
		rel.StreamOrder,
	)
	return err
}

func queryGetRelationBySource(ctx context.Context, db executor, sourceEventID string) (*model.Relation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+relationColumns+` FROM relations WHERE source_event_id = $1`,
		sourceEventID,
	)
	return scanRelation(row)
}

func queryListRelations(ctx context.Context, db executor, filter model.RelationFilter) ([]*model.Relation, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "target_event_id = "+nextArg())
	args = append(args, filter.TargetEventID)

	if filter.RelType != "" {
		whereClauses = append(whereClauses, "rel_type = "+nextArg())
		args = append(args, string(filter.RelType))
	}

	if filter.EventType != "" {
		whereClauses = append(whereClauses, "event_type = "+nextArg())
		args = append(args, filter.EventType)
	}

	if filter.Key != "" {
		whereClauses = append(whereClauses, "aggregation_key = "+nextArg())
		args = append(args, filter.Key)
	}

	if !filter.IncludeStale {
		whereClauses = append(whereClauses, "stale = FALSE")
	}

	if filter.Before != nil {
		tp := nextArg()
		sp := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(topological_order, stream_order) < (%s, %s)", tp, sp))
		args = append(args, filter.Before.Topological, filter.Before.Stream)
	}

	query := `SELECT ` + relationColumns + ` FROM relations WHERE ` +
		strings.Join(whereClauses, " AND ") +
		` ORDER BY topological_order DESC, stream_order DESC`

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()
	return scanRelations(rows)
}

func queryListRelationEvents(ctx context.Context, db executor, filter model.RelationFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "r.target_event_id = "+nextArg())
	args = append(args, filter.TargetEventID)

	if filter.RelType != "" {
		whereClauses = append(whereClauses, "r.rel_type = "+nextArg())
		args = append(args, string(filter.RelType))
	}

	if filter.EventType != "" {
		whereClauses = append(whereClauses, "r.event_type = "+nextArg())
		args = append(args, filter.EventType)
	}

	if filter.Key != "" {
		whereClauses = append(whereClauses, "r.aggregation_key = "+nextArg())
		args = append(args, filter.Key)
	}

	if !filter.IncludeStale {
		whereClauses = append(whereClauses, "r.stale = FALSE")
	}

	if filter.Before != nil {
		tp := nextArg()
		sp := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(r.topological_order, r.stream_order) < (%s, %s)", tp, sp))
		args = append(args, filter.Before.Topological, filter.Before.Stream)
	}

	query := `SELECT ` + joinedEventColumns + `
		FROM relations r
		JOIN events e ON e.event_id = r.source_event_id
		WHERE ` + strings.Join(whereClauses, " AND ") +
		` ORDER BY r.topological_order DESC, r.stream_order DESC`

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relation events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryMarkRelationStale(ctx context.Context, db executor, sourceEventID string) error {
	res, err := db.ExecContext(ctx, `UPDATE relations SET stale = TRUE WHERE source_event_id = $1`, sourceEventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryIncrementAggregation(ctx context.Context, db executor, targetEventID, eventType, key string, firstStream int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO aggregation_groups (target_event_id, event_type, aggregation_key, count, first_stream_order)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (target_event_id, event_type, aggregation_key)
		DO UPDATE SET count = aggregation_groups.count + 1`,
		targetEventID, eventType, key, firstStream,
	)
	return err
}

// queryDecrementAggregation lowers a counter and removes it once it reaches
// zero; counters are never left at zero.
func queryDecrementAggregation(ctx context.Context, db executor, targetEventID, eventType, key string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE aggregation_groups SET count = count - 1
		WHERE target_event_id = $1 AND event_type = $2 AND aggregation_key = $3`,
		targetEventID, eventType, key,
	)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM aggregation_groups
		WHERE target_event_id = $1 AND event_type = $2 AND aggregation_key = $3 AND count <= 0`,
		targetEventID, eventType, key,
	)
	return err
}

func queryListAggregationGroups(ctx context.Context, db executor, filter model.GroupFilter) ([]*model.AggregationGroup, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "target_event_id = "+nextArg())
	args = append(args, filter.TargetEventID)

	if filter.EventType != "" {
		whereClauses = append(whereClauses, "event_type = "+nextArg())
		args = append(args, filter.EventType)
	}

	if filter.After != nil {
		c1 := nextArg()
		c2 := nextArg()
		fs := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(count < %s OR (count = %s AND first_stream_order > %s))", c1, c2, fs))
		args = append(args, filter.After.Count, filter.After.Count, filter.After.FirstStream)
	}

	query := `SELECT target_event_id, event_type, aggregation_key, count, first_stream_order
		FROM aggregation_groups WHERE ` + strings.Join(whereClauses, " AND ") +
		` ORDER BY count DESC, first_stream_order ASC`

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aggregation groups: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

func queryAppendJournal(ctx context.Context, db executor, entry *model.JournalEntry) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO journal (topic, event_id, room_id, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.Topic, entry.EventID, entry.RoomID, entry.Actor, []byte(entry.Payload),
	).Scan(&entry.ID, &entry.CreatedAt)
}

func queryListJournal(ctx context.Context, db executor, limit int) ([]*model.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, event_id, room_id, actor, payload, created_at
		FROM journal
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJournalEntries(rows)
}
