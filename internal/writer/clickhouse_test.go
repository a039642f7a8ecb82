package writer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentBatch struct {
	query string
	rows  [][]interface{}
}

func newTestClickHouseWriter(maxSize int) (*ClickHouseWriter, *[]sentBatch, *[]string) {
	var sent []sentBatch
	var executed []string
	w := &ClickHouseWriter{
		database: "logs",
		cfg:      BatchConfig{MaxSize: maxSize},
		runID:    "run-1",
		exec: func(ctx context.Context, query string) error {
			executed = append(executed, query)
			return nil
		},
		send: func(ctx context.Context, query string, rows [][]interface{}) error {
			sent = append(sent, sentBatch{query: query, rows: rows})
			return nil
		},
		now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return w, &sent, &executed
}

func TestEnsureValidDateTime(t *testing.T) {
	assert.Equal(t, minClickHouseDateTime, ensureValidDateTime(time.Time{}))
	assert.Equal(t, minClickHouseDateTime, ensureValidDateTime(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)))

	valid := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, valid, ensureValidDateTime(valid))
}

func TestClickHouseWriter_FlushSendsRows(t *testing.T) {
	w, sent, _ := newTestClickHouseWriter(100)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.Write(ctx, &domain.LogRecord{InstanceID: "db1", FileName: "a.log", Date: "2024-01-01 00:00:00 UTC", Timestamp: ts, Data: " x"}))
	require.NoError(t, w.Write(ctx, &domain.LogRecord{InstanceID: "db1", FileName: "a.log", Date: "bad", Data: " y"}))
	assert.Empty(t, *sent, "records must stay buffered until Flush")

	require.NoError(t, w.Flush(ctx))
	require.Len(t, *sent, 1)

	batch := (*sent)[0]
	assert.Equal(t, "INSERT INTO logs.rds_log_records", batch.query)
	require.Len(t, batch.rows, 2)
	assert.Equal(t, ts, batch.rows[0][0])
	assert.Equal(t, " x", batch.rows[0][4])
	assert.Equal(t, "run-1", batch.rows[0][6])
	assert.Equal(t, minClickHouseDateTime, batch.rows[1][0])

	// empty flush is a no-op
	require.NoError(t, w.Flush(ctx))
	assert.Len(t, *sent, 1)
}

func TestClickHouseWriter_AutoFlushAtMaxSize(t *testing.T) {
	w, sent, _ := newTestClickHouseWriter(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(ctx, &domain.LogRecord{InstanceID: "db1", FileName: "a.log"}))
	}
	require.Len(t, *sent, 1)
	assert.Len(t, (*sent)[0].rows, 2)
	assert.Len(t, w.batch, 1)
}

func TestClickHouseWriter_FailedFlushKeepsBatch(t *testing.T) {
	w, _, _ := newTestClickHouseWriter(100)
	w.send = func(ctx context.Context, query string, rows [][]interface{}) error {
		return errors.New("code: 60, message: Table logs.rds_log_records doesn't exist")
	}
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, &domain.LogRecord{InstanceID: "db1"}))
	require.Error(t, w.Flush(ctx))
	assert.Len(t, w.batch, 1)
}

func TestClickHouseWriter_EnsureSchema(t *testing.T) {
	w, _, executed := newTestClickHouseWriter(100)
	require.NoError(t, w.EnsureSchema(context.Background()))
	require.Len(t, *executed, 2)
	assert.True(t, strings.Contains((*executed)[0], "logs.rds_log_records"))
	assert.True(t, strings.Contains((*executed)[1], "logs.rds_log_file_progress"))
}

func TestClickHouseWriter_WriteFileReadingProgress(t *testing.T) {
	w, sent, _ := newTestClickHouseWriter(100)

	err := w.WriteFileReadingProgress(context.Background(), &domain.FileReadingProgress{
		Timestamp:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RunID:          "run-1",
		InstanceID:     "db1",
		FileName:       "a.log",
		Marker:         "4:20",
		PendingRead:    true,
		RecordsEmitted: 7,
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Equal(t, "INSERT INTO logs.rds_log_file_progress", (*sent)[0].query)
	row := (*sent)[0].rows[0]
	assert.Equal(t, uint8(1), row[5])
	assert.Equal(t, uint64(7), row[8])
}
