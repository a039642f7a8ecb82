package domain

import "time"

// FileReadingProgress is a monitoring snapshot of a file's progress after a harvest
type FileReadingProgress struct {
	Timestamp      time.Time
	RunID          string
	InstanceID     string
	FileName       string
	Marker         string
	PendingRead    bool
	LastReadTime   time.Time
	LastWrittenMs  int64
	RecordsEmitted uint64
	BytesRead      uint64
}
