package rds

import "context"

// RemoteLogFile is one entry of a log file listing
type RemoteLogFile struct {
	Name          string
	LastWrittenMs int64
	Size          int64
}

// LogFileListing is the result of listing an instance's log files
type LogFileListing struct {
	Files        []RemoteLogFile
	ServerTimeMs int64 // Server time of the listing response, whole seconds
}

// LogPortion is a downloaded slice of a log file
type LogPortion struct {
	Content     string
	NextMarker  string
	MorePending bool
}

// LogSource lists and downloads database log files
type LogSource interface {
	// ListLogFiles lists the log files of an instance in API order
	ListLogFiles(ctx context.Context, instanceID string) (*LogFileListing, error)

	// DownloadPortion downloads the data written after marker
	DownloadPortion(ctx context.Context, instanceID, fileName, marker string) (*LogPortion, error)
}
