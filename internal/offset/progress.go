package offset

import (
	"encoding/json"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
)

// Progress maps instance id -> file name -> read progress
type Progress map[string]map[string]domain.LogFileProgress

// Get returns the stored progress for a file
func (p Progress) Get(instanceID, fileName string) (domain.LogFileProgress, bool) {
	files, ok := p[instanceID]
	if !ok {
		return domain.LogFileProgress{}, false
	}
	fp, ok := files[fileName]
	return fp, ok
}

// Set stores progress for a file
func (p Progress) Set(instanceID, fileName string, fp domain.LogFileProgress) {
	files, ok := p[instanceID]
	if !ok {
		files = make(map[string]domain.LogFileProgress)
		p[instanceID] = files
	}
	files[fileName] = fp
}

// Len returns the number of tracked files
func (p Progress) Len() int {
	n := 0
	for _, files := range p {
		n += len(files)
	}
	return n
}

// Clone returns a deep copy
func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for instanceID, files := range p {
		copied := make(map[string]domain.LogFileProgress, len(files))
		for name, fp := range files {
			copied[name] = fp
		}
		out[instanceID] = copied
	}
	return out
}

// Prune drops entries last read at or before cutoffMs and instances left without files
func (p Progress) Prune(cutoffMs int64) Progress {
	out := make(Progress, len(p))
	for instanceID, files := range p {
		kept := make(map[string]domain.LogFileProgress, len(files))
		for name, fp := range files {
			if fp.LastReadTimeMs > cutoffMs {
				kept[name] = fp
			}
		}
		if len(kept) > 0 {
			out[instanceID] = kept
		}
	}
	return out
}

// Cutoff returns the retention cutoff for a run threshold.
// Retention is measured from the run's freshness threshold, not from the wall clock.
func Cutoff(thresholdMs int64, retentionDays int) int64 {
	return thresholdMs - int64(retentionDays)*domain.OneDayMs
}

// fileState is the on-disk form of one file's progress
type fileState struct {
	Marker      string `json:"marker"`
	Pending     bool   `json:"pending"`
	PendingRead *bool  `json:"pending_read,omitempty"`
	TimeMs      int64  `json:"time_ms"`
}

func (s fileState) progress() domain.LogFileProgress {
	fp := domain.LogFileProgress{
		Marker:         s.Marker,
		LastReadTimeMs: s.TimeMs,
		PendingRead:    s.Pending,
	}
	if s.PendingRead != nil && *s.PendingRead {
		fp.PendingRead = true
	}
	if fp.Marker == "" {
		fp.Marker = domain.DefaultMarker
	}
	return fp
}

func toFileState(fp domain.LogFileProgress) fileState {
	return fileState{
		Marker:  fp.Marker,
		Pending: fp.PendingRead,
		TimeMs:  fp.LastReadTimeMs,
	}
}

func decodeFileState(data []byte) (domain.LogFileProgress, error) {
	var s fileState
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.LogFileProgress{}, err
	}
	return s.progress(), nil
}

// MarshalJSON encodes progress in the state file format
func (p Progress) MarshalJSON() ([]byte, error) {
	raw := make(map[string]map[string]fileState, len(p))
	for instanceID, files := range p {
		m := make(map[string]fileState, len(files))
		for name, fp := range files {
			m[name] = toFileState(fp)
		}
		raw[instanceID] = m
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the state file format; absent fields take their defaults
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]fileState
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Progress, len(raw))
	for instanceID, files := range raw {
		for name, s := range files {
			out.Set(instanceID, name, s.progress())
		}
	}
	*p = out
	return nil
}
