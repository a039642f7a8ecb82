package domain

const (
	// DefaultMarker is the marker of a file that has never been downloaded
	DefaultMarker = "0"

	// OneDayMs is one day in milliseconds
	OneDayMs int64 = 86_400_000
)

// LogFileProgress is the persisted read position of one remote log file
type LogFileProgress struct {
	Marker         string // Opaque cursor returned by the download call
	LastReadTimeMs int64  // Server time of the listing that last advanced Marker, 0 = never read
	PendingRead    bool   // Last download reported more data at Marker
}

// DefaultProgress returns progress for a file with no stored state
func DefaultProgress() LogFileProgress {
	return LogFileProgress{Marker: DefaultMarker}
}

// LogFileDescriptor describes a listed remote file together with its stored progress
type LogFileDescriptor struct {
	InstanceID    string
	FileName      string
	LastWrittenMs int64
	Progress      LogFileProgress
}

// NeedsReading reports whether the file has unread data worth fetching.
// Pending files are always due; otherwise the file must have been written
// after the last read and after the freshness threshold.
func (d LogFileDescriptor) NeedsReading(thresholdMs int64) bool {
	if d.Progress.PendingRead {
		return true
	}
	return d.LastWrittenMs > d.Progress.LastReadTimeMs && d.LastWrittenMs > thresholdMs
}

// DueFile is a file selected for reading, paired with the server time of its listing
type DueFile struct {
	Descriptor    LogFileDescriptor
	RequestTimeMs int64
}
