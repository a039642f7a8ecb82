package streamer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/SteelMorgan/rds-log-streamer/internal/logparser"
	"github.com/SteelMorgan/rds-log-streamer/internal/observability"
	"github.com/SteelMorgan/rds-log-streamer/internal/rds"
	"github.com/SteelMorgan/rds-log-streamer/internal/writer"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// ProgressTracker is the progress state the harvester reads and advances
type ProgressTracker interface {
	ProgressLookup
	Advance(ctx context.Context, instanceID, fileName string, fp domain.LogFileProgress) error
}

// Options configures a Streamer
type Options struct {
	InstanceIDs []string
	ThresholdMs int64
	RunOnce     bool
	RunID       string
}

// Streamer downloads due log files, emits their records and commits progress
type Streamer struct {
	source   rds.LogSource
	selector *Selector
	tracker  ProgressTracker
	writer   writer.RecordWriter
	mirror   writer.ProgressMirror
	opts     Options
	now      func() time.Time
}

// PassStats summarizes one pass over all instances
type PassStats struct {
	Files   int
	Records int
}

// New creates a streamer
func New(source rds.LogSource, tracker ProgressTracker, w writer.RecordWriter, opts Options) *Streamer {
	return &Streamer{
		source:   source,
		selector: NewSelector(source, tracker, opts.InstanceIDs, opts.ThresholdMs),
		tracker:  tracker,
		writer:   w,
		opts:     opts,
		now:      time.Now,
	}
}

// SetProgressMirror sets an optional sink for committed progress snapshots
func (s *Streamer) SetProgressMirror(m writer.ProgressMirror) {
	s.mirror = m
}

// Run harvests once, or repeatedly until ctx is cancelled.
// Cancellation is a clean stop and returns nil; any other failure aborts the run.
func (s *Streamer) Run(ctx context.Context) error {
	log.Info().
		Strs("instances", s.opts.InstanceIDs).
		Int64("threshold_ms", s.opts.ThresholdMs).
		Bool("run_once", s.opts.RunOnce).
		Msg("Streamer starting")

	for pass := 1; ; pass++ {
		stats, err := s.RunPass(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				log.Info().Int("pass", pass).Msg("Streamer stopped")
				return nil
			}
			return err
		}

		log.Debug().
			Int("pass", pass).
			Int("files", stats.Files).
			Int("records", stats.Records).
			Msg("Pass complete")

		if s.opts.RunOnce {
			log.Info().
				Int("files", stats.Files).
				Int("records", stats.Records).
				Msg("Run once complete")
			return nil
		}
		if ctx.Err() != nil {
			log.Info().Int("pass", pass).Msg("Streamer stopped")
			return nil
		}
	}
}

// RunPass harvests every due file of every instance once
func (s *Streamer) RunPass(ctx context.Context) (PassStats, error) {
	var stats PassStats
	for due, err := range s.selector.Due(ctx) {
		if err != nil {
			return stats, err
		}
		n, err := s.harvest(ctx, due)
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Records += n
	}
	return stats, nil
}

// harvest downloads one due file, emits its records and commits the new marker.
// Once the download has returned, emitting and committing ignore cancellation.
func (s *Streamer) harvest(ctx context.Context, due domain.DueFile) (records int, err error) {
	desc := due.Descriptor
	ctx, span := observability.StartSpan(ctx, "streamer.harvest_file",
		attribute.String("db.instance", desc.InstanceID),
		attribute.String("log.file", desc.FileName),
	)
	defer func() { observability.EndSpan(span, err) }()

	portion, err := s.source.DownloadPortion(ctx, desc.InstanceID, desc.FileName, desc.Progress.Marker)
	if err != nil {
		return 0, err
	}
	commitCtx := context.WithoutCancel(ctx)

	parsed := logparser.Records(desc.InstanceID, desc.FileName, portion.Content)
	if len(parsed) == 0 && portion.Content != "" {
		log.Warn().
			Str("instance", desc.InstanceID).
			Str("file", desc.FileName).
			Str("marker", desc.Progress.Marker).
			Int("bytes", len(portion.Content)).
			Msg("Downloaded data has no timestamped records, skipping it")
	}

	for _, r := range parsed {
		if err := s.writer.Write(commitCtx, r); err != nil {
			return 0, fmt.Errorf("failed to emit record for %s/%s: %w", desc.InstanceID, desc.FileName, err)
		}
	}
	if err := s.writer.Flush(commitCtx); err != nil {
		return 0, fmt.Errorf("failed to flush records for %s/%s: %w", desc.InstanceID, desc.FileName, err)
	}

	marker := portion.NextMarker
	if marker == "" {
		log.Warn().
			Str("instance", desc.InstanceID).
			Str("file", desc.FileName).
			Msg("Download returned no marker, keeping the previous one")
		marker = desc.Progress.Marker
	}
	next := domain.LogFileProgress{
		Marker:         marker,
		PendingRead:    portion.MorePending,
		LastReadTimeMs: due.RequestTimeMs,
	}
	if err := s.tracker.Advance(commitCtx, desc.InstanceID, desc.FileName, next); err != nil {
		return 0, err
	}

	observability.IncFilesHarvested(desc.InstanceID)
	observability.AddRecordsEmitted(desc.InstanceID, len(parsed))
	observability.AddDownloadedBytes(desc.InstanceID, len(portion.Content))

	log.Info().
		Str("instance", desc.InstanceID).
		Str("file", desc.FileName).
		Str("from_marker", desc.Progress.Marker).
		Str("marker", next.Marker).
		Bool("pending", next.PendingRead).
		Int("records", len(parsed)).
		Msg("Log file portion committed")

	s.mirrorProgress(commitCtx, desc, next, len(parsed), len(portion.Content))
	return len(parsed), nil
}

func (s *Streamer) mirrorProgress(ctx context.Context, desc domain.LogFileDescriptor, fp domain.LogFileProgress, records, bytes int) {
	if s.mirror == nil {
		return
	}
	err := s.mirror.WriteFileReadingProgress(ctx, &domain.FileReadingProgress{
		Timestamp:      s.now().UTC(),
		RunID:          s.opts.RunID,
		InstanceID:     desc.InstanceID,
		FileName:       desc.FileName,
		Marker:         fp.Marker,
		PendingRead:    fp.PendingRead,
		LastReadTime:   time.UnixMilli(fp.LastReadTimeMs).UTC(),
		LastWrittenMs:  desc.LastWrittenMs,
		RecordsEmitted: uint64(records),
		BytesRead:      uint64(bytes),
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("instance", desc.InstanceID).
			Str("file", desc.FileName).
			Msg("Failed to mirror file progress")
	}
}
