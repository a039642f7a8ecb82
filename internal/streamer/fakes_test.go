package streamer

import (
	"context"
	"fmt"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/SteelMorgan/rds-log-streamer/internal/rds"
)

type downloadCall struct {
	instanceID, fileName, marker string
}

// fakeSource serves fixed listings and queued download responses per file
type fakeSource struct {
	listings  map[string]*rds.LogFileListing
	portions  map[string][]*rds.LogPortion
	listErr   error
	dlErr     error
	lists     []string
	downloads []downloadCall
	onList    func(n int)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listings: make(map[string]*rds.LogFileListing),
		portions: make(map[string][]*rds.LogPortion),
	}
}

func (f *fakeSource) ListLogFiles(ctx context.Context, instanceID string) (*rds.LogFileListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.lists = append(f.lists, instanceID)
	if f.onList != nil {
		f.onList(len(f.lists))
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	listing, ok := f.listings[instanceID]
	if !ok {
		return nil, fmt.Errorf("DBInstanceNotFound: %s", instanceID)
	}
	return listing, nil
}

func (f *fakeSource) DownloadPortion(ctx context.Context, instanceID, fileName, marker string) (*rds.LogPortion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.downloads = append(f.downloads, downloadCall{instanceID, fileName, marker})
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	key := instanceID + "/" + fileName
	queue := f.portions[key]
	if len(queue) == 0 {
		return &rds.LogPortion{NextMarker: marker}, nil
	}
	f.portions[key] = queue[1:]
	return queue[0], nil
}

// memoryWriter collects records; only flushed records count as delivered
type memoryWriter struct {
	pending   []*domain.LogRecord
	delivered []*domain.LogRecord
	flushes   int
	flushErr  error
}

func (m *memoryWriter) Write(ctx context.Context, r *domain.LogRecord) error {
	m.pending = append(m.pending, r)
	return nil
}

func (m *memoryWriter) Flush(ctx context.Context) error {
	m.flushes++
	if m.flushErr != nil {
		return m.flushErr
	}
	m.delivered = append(m.delivered, m.pending...)
	m.pending = nil
	return nil
}

func (m *memoryWriter) Close() error { return nil }

// mapProgress is an in-memory ProgressTracker
type mapProgress struct {
	entries  map[string]domain.LogFileProgress
	advances int
}

func newMapProgress() *mapProgress {
	return &mapProgress{entries: make(map[string]domain.LogFileProgress)}
}

func (m *mapProgress) Lookup(instanceID, fileName string) domain.LogFileProgress {
	if fp, ok := m.entries[instanceID+"/"+fileName]; ok {
		return fp
	}
	return domain.DefaultProgress()
}

func (m *mapProgress) Advance(ctx context.Context, instanceID, fileName string, fp domain.LogFileProgress) error {
	m.advances++
	m.entries[instanceID+"/"+fileName] = fp
	return nil
}

type mirrorRecorder struct {
	snapshots []*domain.FileReadingProgress
}

func (m *mirrorRecorder) WriteFileReadingProgress(ctx context.Context, p *domain.FileReadingProgress) error {
	m.snapshots = append(m.snapshots, p)
	return nil
}
