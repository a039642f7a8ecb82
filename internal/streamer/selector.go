package streamer

import (
	"context"
	"iter"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/SteelMorgan/rds-log-streamer/internal/rds"
	"github.com/rs/zerolog/log"
)

// ProgressLookup resolves stored progress for a file
type ProgressLookup interface {
	Lookup(instanceID, fileName string) domain.LogFileProgress
}

// Threshold returns the freshness threshold in milliseconds: files last
// written at or before it are skipped unless a read is pending
func Threshold(now time.Time, minutesInPast int) int64 {
	return (now.Unix() - int64(minutesInPast)*60) * 1000
}

// Selector decides which remote log files are due for a read
type Selector struct {
	source      rds.LogSource
	progress    ProgressLookup
	instanceIDs []string
	thresholdMs int64
}

// NewSelector creates a selector over the given instances
func NewSelector(source rds.LogSource, progress ProgressLookup, instanceIDs []string, thresholdMs int64) *Selector {
	return &Selector{
		source:      source,
		progress:    progress,
		instanceIDs: instanceIDs,
		thresholdMs: thresholdMs,
	}
}

// Due lists every instance in order and yields the files that need reading,
// paired with the listing's server time. Listing is lazy: an instance is only
// listed once the files of the previous one have been consumed.
// A listing error is yielded once and ends the sequence.
func (s *Selector) Due(ctx context.Context) iter.Seq2[domain.DueFile, error] {
	return func(yield func(domain.DueFile, error) bool) {
		for _, instanceID := range s.instanceIDs {
			listing, err := s.source.ListLogFiles(ctx, instanceID)
			if err != nil {
				yield(domain.DueFile{}, err)
				return
			}

			due := 0
			for _, f := range listing.Files {
				desc := domain.LogFileDescriptor{
					InstanceID:    instanceID,
					FileName:      f.Name,
					LastWrittenMs: f.LastWrittenMs,
					Progress:      s.progress.Lookup(instanceID, f.Name),
				}
				if !desc.NeedsReading(s.thresholdMs) {
					continue
				}
				due++
				if !yield(domain.DueFile{Descriptor: desc, RequestTimeMs: listing.ServerTimeMs}, nil) {
					return
				}
			}

			log.Debug().
				Str("instance", instanceID).
				Int("listed", len(listing.Files)).
				Int("due", due).
				Int64("server_time_ms", listing.ServerTimeMs).
				Msg("Log files checked")
		}
	}
}
