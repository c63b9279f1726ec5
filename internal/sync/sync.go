package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/knotline/knot/internal/store"
)

// Destination receives a finished export snapshot.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the store on a fixed interval and pushes the
// snapshot to every destination.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler. The interval must be positive.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins the export loop. An export runs immediately, then on
// every interval tick until Stop is called.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.exportOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.exportOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) exportOnce(ctx context.Context) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("export failed", "error", err)
		return
	}

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, buf.Bytes()); err != nil {
			s.logger.Error("export destination write failed", "destination", i, "error", err)
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "bytes", buf.Len())
}
