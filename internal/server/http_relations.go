package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/knotline/knot/internal/model"
)

// chunkResponse is the page envelope for relation and aggregation queries.
// next_batch is absent on the final page.
type chunkResponse struct {
	Chunk     any    `json:"chunk"`
	NextBatch string `json:"next_batch,omitempty"`
}

// pageParams extracts the shared pagination query parameters.
func pageParams(r *http.Request) (from string, limit int) {
	q := r.URL.Query()
	from = q.Get("from")
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return from, limit
}

// sendRelationRequest is the JSON body for
// PUT /v1/rooms/{roomID}/send_relation/{eventID}/{relType}/{eventType}.
type sendRelationRequest struct {
	Sender  string          `json:"sender"`
	Content json.RawMessage `json:"content"`
}

// handleSendRelation handles PUT /v1/rooms/{roomID}/send_relation/{eventID}/{relType}/{eventType}.
// The annotation key is taken from the "key" query parameter.
func (s *KnotServer) handleSendRelation(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	targetID := r.PathValue("eventID")
	relType := model.RelType(r.PathValue("relType"))
	eventType := r.PathValue("eventType")

	var req sendRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, "invalid JSON body")
		return
	}

	ev, err := s.sendRelation(r.Context(), sendRelationInput{
		RoomID:        roomID,
		TargetEventID: targetID,
		RelType:       relType,
		EventType:     eventType,
		Key:           r.URL.Query().Get("key"),
		Sender:        req.Sender,
		Content:       req.Content,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"event_id": ev.ID})
}

// handleListRelations handles GET /v1/rooms/{roomID}/relations/{eventID} and
// its narrowing variants with {relType} and {eventType} path segments.
func (s *KnotServer) handleListRelations(w http.ResponseWriter, r *http.Request) {
	from, limit := pageParams(r)

	evs, next, err := s.listRelations(r.Context(), listRelationsInput{
		RoomID:        r.PathValue("roomID"),
		TargetEventID: r.PathValue("eventID"),
		RelType:       model.RelType(r.PathValue("relType")),
		EventType:     r.PathValue("eventType"),
		From:          from,
		Limit:         limit,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	// Ensure chunk is never null in JSON output.
	if evs == nil {
		evs = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, chunkResponse{Chunk: evs, NextBatch: next})
}

// handleListAggregations handles GET /v1/rooms/{roomID}/aggregations/{eventID}
// and its narrowing variants with {relType} and {eventType} path segments.
func (s *KnotServer) handleListAggregations(w http.ResponseWriter, r *http.Request) {
	from, limit := pageParams(r)

	groups, next, err := s.listAggregations(r.Context(), listAggregationsInput{
		RoomID:        r.PathValue("roomID"),
		TargetEventID: r.PathValue("eventID"),
		RelType:       model.RelType(r.PathValue("relType")),
		EventType:     r.PathValue("eventType"),
		From:          from,
		Limit:         limit,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	if groups == nil {
		groups = []*model.AggregationGroup{}
	}

	writeJSON(w, http.StatusOK, chunkResponse{Chunk: groups, NextBatch: next})
}

// handleListGroupEvents handles
// GET /v1/rooms/{roomID}/aggregations/{eventID}/{relType}/{eventType}/{key...}.
// The key is the path remainder so URL-encoded UTF-8 keys (emoji) survive.
func (s *KnotServer) handleListGroupEvents(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, "key is required")
		return
	}

	from, limit := pageParams(r)

	evs, next, err := s.listGroupEvents(r.Context(), listRelationsInput{
		RoomID:        r.PathValue("roomID"),
		TargetEventID: r.PathValue("eventID"),
		RelType:       model.RelType(r.PathValue("relType")),
		EventType:     r.PathValue("eventType"),
		Key:           key,
		From:          from,
		Limit:         limit,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	if evs == nil {
		evs = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, chunkResponse{Chunk: evs, NextBatch: next})
}
