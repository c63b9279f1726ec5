package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/presence"
)

// handlePresence handles GET /v1/presence.
// Returns the live sender roster from the presence tracker.
func (s *KnotServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	if s.Presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{"senders": []any{}})
		return
	}

	// Parse optional stale_threshold_secs query param (default: 30 min).
	staleThreshold := 30 * time.Minute
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			staleThreshold = time.Duration(secs) * time.Second
		}
	}

	entries := s.Presence.Roster(staleThreshold)
	if entries == nil {
		entries = []presence.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"senders": entries})
}

// handleJournal handles GET /v1/journal.
func (s *KnotServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := s.store.ListJournal(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errcodeInternal, "failed to list journal")
		return
	}

	if entries == nil {
		entries = []*model.JournalEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
