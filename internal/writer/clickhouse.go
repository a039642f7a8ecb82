package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/clickhouse"
	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	recordsTable  = "rds_log_records"
	progressTable = "rds_log_file_progress"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime returns t if it fits DateTime64, otherwise the minimum value
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// ClickHouseWriter writes records to ClickHouse in batches
type ClickHouseWriter struct {
	database string
	cfg      BatchConfig
	runID    string
	batch    []*domain.LogRecord
	exec     func(ctx context.Context, query string) error
	send     func(ctx context.Context, query string, rows [][]interface{}) error
	now      func() time.Time
}

// NewClickHouseWriter creates a new ClickHouse batch writer
func NewClickHouseWriter(client *clickhouse.Client, database string, cfg BatchConfig, runID string) *ClickHouseWriter {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10000
	}
	return &ClickHouseWriter{
		database: database,
		cfg:      cfg,
		runID:    runID,
		batch:    make([]*domain.LogRecord, 0, cfg.MaxSize),
		exec: func(ctx context.Context, query string) error {
			return client.Exec(ctx, query)
		},
		send: client.SendBatch,
		now:  time.Now,
	}
}

// EnsureSchema creates the records and progress tables if absent
func (w *ClickHouseWriter) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			event_time DateTime64(3, 'UTC'),
			event_date String,
			instance_id LowCardinality(String),
			log_file_name String,
			log_data String,
			ingested_at DateTime64(3, 'UTC'),
			run_id String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (instance_id, log_file_name, event_time)`, w.database, recordsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			timestamp DateTime64(3, 'UTC'),
			run_id String,
			instance_id LowCardinality(String),
			log_file_name String,
			marker String,
			pending_read UInt8,
			last_read_time DateTime64(3, 'UTC'),
			last_written_ms Int64,
			records_emitted UInt64,
			bytes_read UInt64
		) ENGINE = ReplacingMergeTree(timestamp)
		ORDER BY (instance_id, log_file_name)`, w.database, progressTable),
	}

	for _, stmt := range statements {
		if err := w.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Write adds a record to the batch, flushing when the batch is full
func (w *ClickHouseWriter) Write(ctx context.Context, record *domain.LogRecord) error {
	recordCopy := *record
	w.batch = append(w.batch, &recordCopy)

	if len(w.batch) >= w.cfg.MaxSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush sends pending records. The batch is kept on failure so it can be retried.
func (w *ClickHouseWriter) Flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}

	startTime := w.now()
	ingestedAt := startTime.UTC()
	rows := make([][]interface{}, 0, len(w.batch))
	for _, r := range w.batch {
		rows = append(rows, []interface{}{
			ensureValidDateTime(r.Timestamp),
			r.Date,
			r.InstanceID,
			r.FileName,
			r.Data,
			ingestedAt,
			w.runID,
		})
	}

	query := fmt.Sprintf("INSERT INTO %s.%s", w.database, recordsTable)
	if err := w.send(ctx, query, rows); err != nil {
		return fmt.Errorf("failed to write %d records: %w", len(rows), err)
	}

	log.Debug().
		Int("records", len(rows)).
		Dur("duration", w.now().Sub(startTime)).
		Msg("Records batch written to ClickHouse")

	w.batch = w.batch[:0]
	return nil
}

// WriteFileReadingProgress mirrors committed file progress for monitoring
func (w *ClickHouseWriter) WriteFileReadingProgress(ctx context.Context, progress *domain.FileReadingProgress) error {
	var pending uint8
	if progress.PendingRead {
		pending = 1
	}

	row := []interface{}{
		ensureValidDateTime(progress.Timestamp),
		progress.RunID,
		progress.InstanceID,
		progress.FileName,
		progress.Marker,
		pending,
		ensureValidDateTime(progress.LastReadTime),
		progress.LastWrittenMs,
		progress.RecordsEmitted,
		progress.BytesRead,
	}

	query := fmt.Sprintf("INSERT INTO %s.%s", w.database, progressTable)
	if err := w.send(ctx, query, [][]interface{}{row}); err != nil {
		return fmt.Errorf("failed to write file progress: %w", err)
	}
	return nil
}

// Close flushes pending records
func (w *ClickHouseWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return w.Flush(ctx)
}
