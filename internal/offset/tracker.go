package offset

import (
	"context"
	"fmt"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/SteelMorgan/rds-log-streamer/internal/observability"
	"github.com/rs/zerolog/log"
)

// Tracker owns the in-memory progress of a run and writes it through to a store.
// It is not safe for concurrent use; the harvester is its only writer.
type Tracker struct {
	store    ProgressStore
	progress Progress
	cutoffMs int64
}

// NewTracker loads progress from store. Entries older than cutoffMs are kept
// in memory until the first save prunes them.
func NewTracker(ctx context.Context, store ProgressStore, cutoffMs int64) (*Tracker, error) {
	p, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = Progress{}
	}

	log.Info().
		Int("tracked_files", p.Len()).
		Int64("cutoff_ms", cutoffMs).
		Msg("Progress loaded")
	observability.SetTrackedFiles(p.Len())

	return &Tracker{store: store, progress: p, cutoffMs: cutoffMs}, nil
}

// Lookup returns stored progress for a file, or defaults if none is stored
func (t *Tracker) Lookup(instanceID, fileName string) domain.LogFileProgress {
	if fp, ok := t.progress.Get(instanceID, fileName); ok {
		return fp
	}
	return domain.DefaultProgress()
}

// Advance records new progress for a file, prunes expired entries and saves
// the full map. The in-memory state is only replaced once the save succeeds.
func (t *Tracker) Advance(ctx context.Context, instanceID, fileName string, fp domain.LogFileProgress) error {
	next := t.progress.Clone()
	next.Set(instanceID, fileName, fp)
	next = next.Prune(t.cutoffMs)

	if err := t.store.Save(ctx, next); err != nil {
		observability.IncStateSave("error")
		return fmt.Errorf("failed to persist progress for %s/%s: %w", instanceID, fileName, err)
	}
	observability.IncStateSave("ok")
	observability.SetTrackedFiles(next.Len())

	t.progress = next
	return nil
}

// Snapshot returns a copy of the current progress
func (t *Tracker) Snapshot() Progress {
	return t.progress.Clone()
}
