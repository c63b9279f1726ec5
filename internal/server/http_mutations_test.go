package server

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/knotline/knot/internal/model"
)

func TestHandleSendEvent(t *testing.T) {
	_, ms, h := newTestServer()

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/send/m.room.message", map[string]any{
		"sender":  "@alice:knot.test",
		"content": map[string]any{"msgtype": "m.text", "body": "hello"},
	})
	requireStatus(t, rec, 200)

	var body map[string]string
	decodeJSON(t, rec, &body)
	id := body["event_id"]
	if id == "" || id[0] != '$' {
		t.Fatalf("expected a $-prefixed event ID, got %q", id)
	}

	ev := ms.events[id]
	if ev == nil {
		t.Fatal("event not persisted")
	}
	if ev.RoomID != testRoom || ev.Type != "m.room.message" || ev.Sender != "@alice:knot.test" {
		t.Fatalf("unexpected stored event: %+v", ev)
	}
	if ev.StreamOrder != 1 || ev.TopologicalOrder != 1 {
		t.Fatalf("expected stream/topological order 1/1, got %d/%d", ev.StreamOrder, ev.TopologicalOrder)
	}
	if ev.OriginServerTS == 0 {
		t.Fatal("expected origin_server_ts to be set")
	}
}

func TestHandleSendEvent_MissingSender(t *testing.T) {
	_, ms, h := newTestServer()

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/send/m.room.message", map[string]any{
		"content": map[string]any{"body": "hello"},
	})
	requireErrcode(t, rec, 400, "INVALID_PARAM")
	if len(ms.events) != 0 {
		t.Fatal("expected nothing persisted")
	}
}

func TestHandleSendEvent_InvalidBody(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/send/m.room.message", "not an object")
	requireErrcode(t, rec, 400, "INVALID_PARAM")
}

func TestHandleSendStateEvent(t *testing.T) {
	_, ms, h := newTestServer()

	rec := doJSON(t, h, "POST",
		"/v1/rooms/"+url.PathEscape(testRoom)+"/state/m.room.member/"+url.PathEscape("@carol:knot.test"),
		map[string]any{
			"sender":  "@carol:knot.test",
			"content": map[string]any{"membership": "join"},
		})
	requireStatus(t, rec, 200)

	var body map[string]string
	decodeJSON(t, rec, &body)

	ev := ms.events[body["event_id"]]
	if ev == nil {
		t.Fatal("state event not persisted")
	}
	if ev.StateKey == nil || *ev.StateKey != "@carol:knot.test" {
		t.Fatalf("expected state_key @carol:knot.test, got %v", ev.StateKey)
	}
	if !ev.IsMembership() {
		t.Fatal("expected a membership event")
	}
}

func TestHandleSendRelation(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	src := mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "👍")

	if len(ms.relations) != 1 {
		t.Fatalf("expected 1 relation row, got %d", len(ms.relations))
	}
	rel := ms.relations[0]
	if rel.SourceEventID != src || rel.TargetEventID != parent {
		t.Fatalf("unexpected edge endpoints: %+v", rel)
	}
	if rel.RelType != model.RelAnnotation || rel.EventType != "m.reaction" || rel.AggregationKey != "👍" {
		t.Fatalf("unexpected edge shape: %+v", rel)
	}

	// Positions are copied from the source event inside the same transaction.
	ev := ms.events[src]
	if rel.TopologicalOrder != ev.TopologicalOrder || rel.StreamOrder != ev.StreamOrder {
		t.Fatalf("edge positions %d/%d do not match event %d/%d",
			rel.TopologicalOrder, rel.StreamOrder, ev.TopologicalOrder, ev.StreamOrder)
	}

	g := ms.groups[groupKey(parent, "m.reaction", "👍")]
	if g == nil || g.Count != 1 {
		t.Fatalf("expected counter at 1, got %+v", g)
	}
	if g.FirstStreamOrder != ev.StreamOrder {
		t.Fatalf("expected first_stream_order %d, got %d", ev.StreamOrder, g.FirstStreamOrder)
	}
}

func TestHandleSendRelation_DescriptorMergedIntoContent(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	rec := doJSON(t, h, "PUT",
		"/v1/rooms/"+url.PathEscape(testRoom)+"/send_relation/"+url.PathEscape(parent)+"/m.reference/m.room.message",
		map[string]any{
			"sender":  "@bob:knot.test",
			"content": map[string]any{"msgtype": "m.text", "body": "reply"},
		})
	requireStatus(t, rec, 200)

	var body map[string]string
	decodeJSON(t, rec, &body)
	ev := ms.events[body["event_id"]]
	if ev == nil {
		t.Fatal("relation event not persisted")
	}

	var content struct {
		Body      string `json:"body"`
		RelatesTo struct {
			EventID string `json:"event_id"`
			RelType string `json:"rel_type"`
		} `json:"m.relates_to"`
	}
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		t.Fatalf("failed to decode stored content: %v", err)
	}
	if content.Body != "reply" {
		t.Fatalf("caller content lost: %s", ev.Content)
	}
	if content.RelatesTo.EventID != parent || content.RelatesTo.RelType != "m.reference" {
		t.Fatalf("unexpected descriptor: %+v", content.RelatesTo)
	}
}

func TestHandleSendRelation_TargetNotFound(t *testing.T) {
	_, ms, h := newTestServer()

	rec := sendRelation(t, h, testRoom, "$missing", "m.annotation", "m.reaction", "a")
	requireErrcode(t, rec, 404, "NOT_FOUND")
	if len(ms.relations) != 0 || len(ms.events) != 0 {
		t.Fatal("expected nothing persisted")
	}
}

// A membership event is never an eligible relation target, and the rejected
// request must leave the store untouched.
func TestHandleSendRelation_MembershipTarget(t *testing.T) {
	_, ms, h := newTestServer()

	rec := doJSON(t, h, "POST",
		"/v1/rooms/"+url.PathEscape(testRoom)+"/state/m.room.member/"+url.PathEscape("@carol:knot.test"),
		map[string]any{
			"sender":  "@carol:knot.test",
			"content": map[string]any{"membership": "join"},
		})
	requireStatus(t, rec, 200)
	var body map[string]string
	decodeJSON(t, rec, &body)
	member := body["event_id"]

	eventsBefore := len(ms.events)

	rec = sendRelation(t, h, testRoom, member, "m.annotation", "m.reaction", "a")
	requireErrcode(t, rec, 400, "INVALID_RELATION")

	if len(ms.events) != eventsBefore {
		t.Fatal("rejected relation persisted an event")
	}
	if len(ms.relations) != 0 || len(ms.groups) != 0 {
		t.Fatal("rejected relation left index state behind")
	}
}

func TestHandleSendRelation_RedactedTarget(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(parent),
		map[string]any{"sender": "@alice:knot.test"})
	requireStatus(t, rec, 200)

	eventsBefore := len(ms.events)

	rec = sendRelation(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	requireErrcode(t, rec, 400, "INVALID_RELATION")
	if len(ms.events) != eventsBefore || len(ms.relations) != 0 {
		t.Fatal("expected nothing persisted")
	}
}

func TestHandleSendRelation_MissingKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		_, ms, h := newTestServer()
		parent := sendMessage(t, h, testRoom)

		rec := sendRelation(t, h, testRoom, parent, "m.annotation", "m.reaction", key)
		requireErrcode(t, rec, 400, "INVALID_RELATION")
		if len(ms.relations) != 0 {
			t.Fatalf("key %q: relation persisted despite rejection", key)
		}
	}
}

func TestHandleSendRelation_MissingSender(t *testing.T) {
	_, _, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	rec := doJSON(t, h, "PUT",
		"/v1/rooms/"+url.PathEscape(testRoom)+"/send_relation/"+url.PathEscape(parent)+"/m.annotation/m.reaction?key=a",
		map[string]any{})
	requireErrcode(t, rec, 400, "INVALID_PARAM")
}

// Duplicate identical annotations multiply-count: there is no dedup per
// sender or per key.
func TestHandleSendRelation_DuplicatesCount(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")

	g := ms.groups[groupKey(parent, "m.reaction", "a")]
	if g == nil || g.Count != 3 {
		t.Fatalf("expected count 3, got %+v", g)
	}
}

func TestHandleSendRelation_ReferenceHasNoCounter(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	mustRelate(t, h, testRoom, parent, "m.reference", "m.room.message", "")

	if len(ms.groups) != 0 {
		t.Fatalf("references must not create counters, got %+v", ms.groups)
	}
}

func TestHandleSendRelation_StoreFailure(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	ms.createEventErr = errors.New("connection reset")
	rec := sendRelation(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	requireErrcode(t, rec, 500, "INTERNAL")
	if len(ms.relations) != 0 || len(ms.groups) != 0 {
		t.Fatal("failed transaction left index state behind")
	}
}

func TestHandleRedactEvent(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(parent),
		map[string]any{"sender": "@alice:knot.test"})
	requireStatus(t, rec, 200)

	var body map[string]string
	decodeJSON(t, rec, &body)
	redaction := ms.events[body["event_id"]]
	if redaction == nil || redaction.Type != model.EventTypeRedaction {
		t.Fatalf("expected a persisted redaction event, got %+v", redaction)
	}

	if !ms.events[parent].Redacted {
		t.Fatal("target not marked redacted")
	}
}

func TestHandleRedactEvent_NotFound(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/$missing",
		map[string]any{"sender": "@alice:knot.test"})
	requireErrcode(t, rec, 404, "NOT_FOUND")
}

func TestHandleRedactEvent_MissingSender(t *testing.T) {
	_, _, h := newTestServer()
	parent := sendMessage(t, h, testRoom)
	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(parent),
		map[string]any{})
	requireErrcode(t, rec, 400, "INVALID_PARAM")
}

// Redacting an annotation source decrements its group and hides the edge;
// the row itself survives with the stale marker, and the group disappears
// once its count reaches zero.
func TestHandleRedactEvent_AnnotationSource(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	a1 := mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	a2 := mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")

	redact := func(id string) {
		rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(id),
			map[string]any{"sender": "@alice:knot.test"})
		requireStatus(t, rec, 200)
	}

	redact(a1)

	g := ms.groups[groupKey(parent, "m.reaction", "a")]
	if g == nil || g.Count != 1 {
		t.Fatalf("expected count 1 after first redaction, got %+v", g)
	}

	rec := doJSON(t, h, "GET", "/v1/rooms/"+url.PathEscape(testRoom)+"/relations/"+url.PathEscape(parent), nil)
	requireStatus(t, rec, 200)
	var p page
	decodeJSON(t, rec, &p)
	ids := chunkEventIDs(t, p)
	if len(ids) != 1 || ids[0] != a2 {
		t.Fatalf("expected stale edge hidden, got %v", ids)
	}

	redact(a2)

	if _, ok := ms.groups[groupKey(parent, "m.reaction", "a")]; ok {
		t.Fatal("expected group removed at zero")
	}

	// The edge rows survive, flagged stale.
	if len(ms.relations) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(ms.relations))
	}
	for _, rel := range ms.relations {
		if !rel.Stale {
			t.Fatalf("expected stale marker on %s", rel.SourceEventID)
		}
	}
}

// Redacting the parent does not touch the edges pointing at it.
func TestHandleRedactEvent_ParentKeepsEdges(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(parent),
		map[string]any{"sender": "@alice:knot.test"})
	requireStatus(t, rec, 200)

	if ms.relations[0].Stale {
		t.Fatal("redacting the target must not stale its incoming edges")
	}
	g := ms.groups[groupKey(parent, "m.reaction", "a")]
	if g == nil || g.Count != 1 {
		t.Fatalf("expected counter untouched, got %+v", g)
	}
}

// A second redaction of the same relation source must not decrement twice.
func TestHandleRedactEvent_DoubleRedactionCountsOnce(t *testing.T) {
	_, ms, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	a1 := mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")
	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(a1),
			map[string]any{"sender": "@alice:knot.test"})
		requireStatus(t, rec, 200)
	}

	g := ms.groups[groupKey(parent, "m.reaction", "a")]
	if g == nil || g.Count != 1 {
		t.Fatalf("expected count 1 after double redaction, got %+v", g)
	}
}

// A redacted parent is still served, and its bundle reflects only live edges.
func TestHandleGetEvent_RedactedParentStillBundles(t *testing.T) {
	_, _, h := newTestServer()
	parent := sendMessage(t, h, testRoom)

	mustRelate(t, h, testRoom, parent, "m.annotation", "m.reaction", "a")

	rec := doJSON(t, h, "POST", "/v1/rooms/"+url.PathEscape(testRoom)+"/redact/"+url.PathEscape(parent),
		map[string]any{"sender": "@alice:knot.test"})
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/rooms/"+url.PathEscape(testRoom)+"/event/"+url.PathEscape(parent), nil)
	requireStatus(t, rec, 200)

	var body struct {
		Redacted bool `json:"redacted"`
		Unsigned *struct {
			Relations map[string]json.RawMessage `json:"m.relations"`
		} `json:"unsigned"`
	}
	decodeJSON(t, rec, &body)
	if !body.Redacted {
		t.Fatal("expected redacted flag on served event")
	}
	if body.Unsigned == nil {
		t.Fatal("expected bundle on redacted parent")
	}
	if _, ok := body.Unsigned.Relations["m.annotation"]; !ok {
		t.Fatal("expected annotation chunk in bundle")
	}
}
