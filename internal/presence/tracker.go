// Package presence tracks recently active senders for the room roster.
//
// The Tracker maintains an in-memory map of senders, updated directly by
// the server whenever a send succeeds. A background reaper goroutine marks
// quiet senders offline after a configurable threshold and eventually
// evicts them so the map does not grow without bound.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry represents a single sender's live activity state.
type Entry struct {
	Sender        string    `json:"sender"`
	LastSeen      time.Time `json:"last_seen"`
	FirstSeen     time.Time `json:"first_seen"`
	LastEventType string    `json:"last_event_type"`          // e.g. "m.room.message", "m.reaction"
	LastRoomID    string    `json:"last_room_id,omitempty"`   // room of the most recent send
	LastEventID   string    `json:"last_event_id,omitempty"`  // ID of the most recent send
	IdleSecs      float64   `json:"idle_secs"`                // seconds since last send
	EventCount    int64     `json:"event_count"`              // total sends seen
	ActiveSecs    float64   `json:"active_secs"`              // seconds since first send
	Offline       bool      `json:"offline,omitempty"`        // true if the reaper marked the sender offline
	OfflineAt     time.Time `json:"offline_at,omitempty"`     // when marked offline
}

// Activity is the data extracted from a successful send that the tracker
// needs to update a sender's state.
type Activity struct {
	Sender    string // fully qualified sender, e.g. "@alice:knot.test"
	EventType string // type of the event sent
	RoomID    string // room the event landed in
	EventID   string // assigned event ID
}

// ReaperConfig configures the background offline-sender reaper.
type ReaperConfig struct {
	// OfflineThreshold is how long a sender must be quiet before being
	// marked offline. Default: 15 minutes.
	OfflineThreshold time.Duration

	// EvictAfter is how long after going offline before a sender is
	// permanently removed from the in-memory map. Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans for quiet senders.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnOffline is called for each sender newly marked offline.
	// Called outside the lock; safe to make blocking calls.
	OnOffline func(sender string, lastSeen time.Time)
}

// Tracker maintains an in-memory roster of active senders.
type Tracker struct {
	mu      sync.RWMutex
	senders map[string]*senderState
	started time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type senderState struct {
	firstSeen     time.Time
	lastSeen      time.Time
	lastEventType string
	lastRoomID    string
	lastEventID   string
	eventCount    int64
	offline       bool
	offlineAt     time.Time
}

// New creates a new presence tracker.
func New() *Tracker {
	return &Tracker{
		senders: make(map[string]*senderState),
		started: time.Now(),
	}
}

// Record updates the state for a sender after a successful send.
func (t *Tracker) Record(a Activity) {
	if a.Sender == "" {
		return
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.senders[a.Sender]
	if !ok {
		state = &senderState{firstSeen: now}
		t.senders[a.Sender] = state
	}

	// A quiet sender that sends again comes back online.
	if state.offline {
		slog.Info("presence: sender back online", "sender", a.Sender)
		state.offline = false
		state.offlineAt = time.Time{}
	}

	state.lastSeen = now
	state.lastEventType = a.EventType
	state.eventCount++

	if a.RoomID != "" {
		state.lastRoomID = a.RoomID
	}
	if a.EventID != "" {
		state.lastEventID = a.EventID
	}
}

// Roster returns a snapshot of all tracked senders, sorted by most recently
// active. staleThreshold controls how long since the last send before a
// sender is excluded. Pass 0 to include every sender ever seen.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.senders))

	for sender, state := range t.senders {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}

		firstSeen := state.firstSeen
		if firstSeen.IsZero() {
			firstSeen = t.started
		}

		entries = append(entries, Entry{
			Sender:        sender,
			LastSeen:      state.lastSeen,
			FirstSeen:     firstSeen,
			LastEventType: state.lastEventType,
			LastRoomID:    state.lastRoomID,
			LastEventID:   state.lastEventID,
			IdleSecs:      idle.Seconds(),
			EventCount:    state.eventCount,
			ActiveSecs:    now.Sub(firstSeen).Seconds(),
			Offline:       state.offline,
			OfflineAt:     state.offlineAt,
		})
	}

	// Sort by last seen (most recent first).
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})

	return entries
}

// StartReaper launches a background goroutine that periodically marks quiet
// senders offline. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.OfflineThreshold == 0 {
		cfg.OfflineThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"offline_threshold", cfg.OfflineThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := time.Now()

	type offlineSender struct {
		name     string
		lastSeen time.Time
	}
	var newlyOffline []offlineSender

	t.mu.Lock()
	for sender, state := range t.senders {
		if state.offline {
			// Evict senders offline for longer than EvictAfter.
			// Low-activity senders (<10 sends) are likely drive-by; evict faster (5 min).
			evictThreshold := cfg.EvictAfter
			if state.eventCount < 10 {
				evictThreshold = 5 * time.Minute
			}
			if !state.offlineAt.IsZero() && now.Sub(state.offlineAt) > evictThreshold {
				delete(t.senders, sender)
			}
			continue
		}
		idle := now.Sub(state.lastSeen)
		if idle > cfg.OfflineThreshold {
			state.offline = true
			state.offlineAt = now
			newlyOffline = append(newlyOffline, offlineSender{name: sender, lastSeen: state.lastSeen})
		}
	}
	t.mu.Unlock()

	for _, off := range newlyOffline {
		slog.Info("presence: reaper marked sender offline",
			"sender", off.name,
			"threshold", cfg.OfflineThreshold)
		if cfg.OnOffline != nil {
			cfg.OnOffline(off.name, off.lastSeen)
		}
	}
}
