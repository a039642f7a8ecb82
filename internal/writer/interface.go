package writer

import (
	"context"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
)

// RecordWriter emits harvested log records
type RecordWriter interface {
	// Write emits a record (possibly buffered)
	Write(ctx context.Context, record *domain.LogRecord) error

	// Flush forces all buffered records out.
	// Progress is only persisted after Flush returns nil.
	Flush(ctx context.Context) error

	// Close flushes pending records and closes the writer
	Close() error
}

// ProgressMirror receives a copy of file progress after each commit, for monitoring
type ProgressMirror interface {
	WriteFileReadingProgress(ctx context.Context, progress *domain.FileReadingProgress) error
}

// BatchConfig configures batch behavior
type BatchConfig struct {
	MaxSize int // Maximum records per batch before an automatic flush
}

// Supported writer kinds
const (
	KindStdout     = "stdout"
	KindClickHouse = "clickhouse"
	KindNATS       = "nats"
)
