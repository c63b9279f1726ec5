package server

import (
	"encoding/json"
	"net/http"
)

// sendEventRequest is the JSON body for POST /v1/rooms/{roomID}/send/{eventType}
// and its state variant.
type sendEventRequest struct {
	Sender  string          `json:"sender"`
	Content json.RawMessage `json:"content"`
}

// handleSendEvent handles POST /v1/rooms/{roomID}/send/{eventType}.
func (s *KnotServer) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	eventType := r.PathValue("eventType")

	var req sendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, "invalid JSON body")
		return
	}

	ev, err := s.sendEvent(r.Context(), sendEventInput{
		RoomID:  roomID,
		Type:    eventType,
		Sender:  req.Sender,
		Content: req.Content,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"event_id": ev.ID})
}

// handleSendStateEvent handles POST /v1/rooms/{roomID}/state/{eventType}/{stateKey}.
// State events are how membership rows enter the store; they are never
// eligible relation targets.
func (s *KnotServer) handleSendStateEvent(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	eventType := r.PathValue("eventType")
	stateKey := r.PathValue("stateKey")

	var req sendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, "invalid JSON body")
		return
	}

	ev, err := s.sendEvent(r.Context(), sendEventInput{
		RoomID:   roomID,
		Type:     eventType,
		StateKey: &stateKey,
		Sender:   req.Sender,
		Content:  req.Content,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"event_id": ev.ID})
}

// handleGetEvent handles GET /v1/rooms/{roomID}/event/{eventID}.
// The served event carries its relation bundle under unsigned["m.relations"]
// when any live relations exist.
func (s *KnotServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	eventID := r.PathValue("eventID")

	ev, err := s.getEvent(r.Context(), roomID, eventID)
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// redactEventRequest is the JSON body for POST /v1/rooms/{roomID}/redact/{eventID}.
type redactEventRequest struct {
	Sender string `json:"sender"`
}

// handleRedactEvent handles POST /v1/rooms/{roomID}/redact/{eventID}.
func (s *KnotServer) handleRedactEvent(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	eventID := r.PathValue("eventID")

	var req redactEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, "invalid JSON body")
		return
	}

	redaction, err := s.redactEvent(r.Context(), roomID, eventID, req.Sender)
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"event_id": redaction.ID})
}
