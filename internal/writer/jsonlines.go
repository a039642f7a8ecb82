package writer

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
)

// JSONLinesWriter writes one JSON object per record per line
type JSONLinesWriter struct {
	w *bufio.Writer
}

// NewJSONLinesWriter creates a writer over out (usually stdout)
func NewJSONLinesWriter(out io.Writer) *JSONLinesWriter {
	return &JSONLinesWriter{w: bufio.NewWriter(out)}
}

// Write buffers one record line
func (j *JSONLinesWriter) Write(ctx context.Context, record *domain.LogRecord) error {
	line, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if _, err := j.w.Write(line); err != nil {
		return err
	}
	return j.w.WriteByte('\n')
}

// Flush writes buffered lines to the underlying writer
func (j *JSONLinesWriter) Flush(ctx context.Context) error {
	return j.w.Flush()
}

// Close flushes buffered lines
func (j *JSONLinesWriter) Close() error {
	return j.w.Flush()
}
