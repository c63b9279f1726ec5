package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DirDestination writes each snapshot to a local directory. Every
// export produces a timestamped file plus a stable latest.jsonl, so the
// directory doubles as a history and a pick-up point.
type DirDestination struct {
	dir string
}

// NewDirDestination builds a destination rooted at dir. The directory
// is created on first write.
func NewDirDestination(dir string) *DirDestination {
	return &DirDestination{dir: dir}
}

// Write stores the snapshot under a timestamped name and refreshes
// latest.jsonl.
func (d *DirDestination) Write(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", d.dir, err)
	}

	name := "knot-" + time.Now().UTC().Format("20060102T150405Z") + ".jsonl"
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}

	latest := filepath.Join(d.dir, "latest.jsonl")
	if err := os.WriteFile(latest, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", latest, err)
	}
	return nil
}
