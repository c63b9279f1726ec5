package main

import (
	"testing"

	"github.com/knotline/knot/internal/model"
)

func TestFreshJournalEntries_InitialPoll(t *testing.T) {
	entries := []*model.JournalEntry{
		{ID: 2, Topic: "knot.relation.created"},
		{ID: 1, Topic: "knot.event.created"},
	}

	fresh, lastID := freshJournalEntries(entries, 0)
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh, want 2", len(fresh))
	}
	if lastID != 2 {
		t.Fatalf("got lastID=%d, want 2", lastID)
	}
}

func TestFreshJournalEntries_ChronologicalOrder(t *testing.T) {
	// Journal batches arrive newest first; output must be oldest first.
	entries := []*model.JournalEntry{
		{ID: 3},
		{ID: 2},
		{ID: 1},
	}

	fresh, _ := freshJournalEntries(entries, 0)
	if len(fresh) != 3 {
		t.Fatalf("got %d fresh, want 3", len(fresh))
	}
	for i, want := range []int64{1, 2, 3} {
		if fresh[i].ID != want {
			t.Errorf("fresh[%d].ID = %d, want %d", i, fresh[i].ID, want)
		}
	}
}

func TestFreshJournalEntries_NoChanges(t *testing.T) {
	entries := []*model.JournalEntry{
		{ID: 2},
		{ID: 1},
	}

	fresh, lastID := freshJournalEntries(entries, 2)
	if len(fresh) != 0 {
		t.Fatalf("got %d fresh, want 0", len(fresh))
	}
	if lastID != 2 {
		t.Fatalf("got lastID=%d, want watermark unchanged at 2", lastID)
	}
}

func TestFreshJournalEntries_PartialOverlap(t *testing.T) {
	entries := []*model.JournalEntry{
		{ID: 4, Topic: "knot.event.redacted"},
		{ID: 3, Topic: "knot.event.created"},
		{ID: 2},
		{ID: 1},
	}

	fresh, lastID := freshJournalEntries(entries, 2)
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh, want 2", len(fresh))
	}
	if fresh[0].ID != 3 || fresh[1].ID != 4 {
		t.Errorf("got IDs %d,%d, want 3,4", fresh[0].ID, fresh[1].ID)
	}
	if lastID != 4 {
		t.Fatalf("got lastID=%d, want 4", lastID)
	}
}

func TestFreshJournalEntries_Empty(t *testing.T) {
	fresh, lastID := freshJournalEntries(nil, 7)
	if len(fresh) != 0 {
		t.Fatalf("got %d fresh, want 0", len(fresh))
	}
	if lastID != 7 {
		t.Fatalf("got lastID=%d, want 7", lastID)
	}
}
