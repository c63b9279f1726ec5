// Package server implements the relation aggregation engine and its HTTP
// surface: relation ingest, reverse-index pagination, annotation counters,
// bundled event reads, and redaction.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/knotline/knot/internal/events"
	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/presence"
	"github.com/knotline/knot/internal/store"
)

// PermissionChecker decides whether a sender may act in a room. The engine
// treats it as an external collaborator: a rejection surfaces as a
// PermissionError, and the engine never produces one on its own.
type PermissionChecker interface {
	CheckSend(ctx context.Context, roomID, sender string) error
}

// allowAll is the default permission checker. Membership enforcement
// belongs to the membership service in front of this one.
type allowAll struct{}

func (allowAll) CheckSend(context.Context, string, string) error { return nil }

// KnotServer serves the relation aggregation API.
type KnotServer struct {
	store     store.Store
	publisher events.Publisher
	perms     PermissionChecker
	Presence  *presence.Tracker
}

// NewKnotServer returns a new KnotServer backed by the given store and publisher.
func NewKnotServer(s store.Store, p events.Publisher) *KnotServer {
	return &KnotServer{
		store:     s,
		publisher: p,
		perms:     allowAll{},
		Presence:  presence.New(),
	}
}

// SetPermissionChecker replaces the default allow-all checker.
func (s *KnotServer) SetPermissionChecker(pc PermissionChecker) {
	if pc != nil {
		s.perms = pc
	}
}

// recordAndPublish appends a journal entry and publishes the event to NATS.
// Both run after the triggering transaction committed; failures are logged
// but do not fail the caller.
func (s *KnotServer) recordAndPublish(ctx context.Context, topic, eventID, roomID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "event_id", eventID, "error", err)
		return
	}
	if err := s.store.AppendJournal(ctx, &model.JournalEntry{
		Topic:   topic,
		EventID: eventID,
		RoomID:  roomID,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		slog.Warn("failed to append journal entry", "topic", topic, "event_id", eventID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "event_id", eventID, "error", err)
	}
}

// recordActivity feeds the presence tracker after a successful send.
func (s *KnotServer) recordActivity(ev *model.Event) {
	if s.Presence == nil {
		return
	}
	s.Presence.Record(presence.Activity{
		Sender:    ev.Sender,
		EventType: ev.Type,
		RoomID:    ev.RoomID,
		EventID:   ev.ID,
	})
}

// inputError indicates invalid user input.
// The HTTP layer maps this to 400 INVALID_PARAM.
type inputError string

func (e inputError) Error() string { return string(e) }
