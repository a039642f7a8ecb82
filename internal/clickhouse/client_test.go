package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SteelMorgan/rds-log-streamer/internal/retry"
)

type fakeBatch struct {
	driver.Batch
	rows      [][]any
	appendErr error
	sendErr   error
	aborted   bool
	sent      bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

func (b *fakeBatch) Send() error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = true
	return nil
}

type fakeConn struct {
	driver.Conn
	batches    []*fakeBatch
	prepareErr error
	queries    []string
	next       func(attempt int) *fakeBatch
}

func (c *fakeConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.queries = append(c.queries, query)
	if c.prepareErr != nil {
		return nil, c.prepareErr
	}
	b := c.next(len(c.batches))
	c.batches = append(c.batches, b)
	return b, nil
}

func testRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func TestSendBatch_AppendsAllRows(t *testing.T) {
	conn := &fakeConn{next: func(int) *fakeBatch { return &fakeBatch{} }}
	c := &Client{conn: conn, retryCfg: testRetryConfig()}

	rows := [][]interface{}{{"db1", "a.log", "x"}, {"db1", "a.log", "y"}}
	require.NoError(t, c.SendBatch(context.Background(), "INSERT INTO logs.rds_log_records", rows))

	require.Len(t, conn.batches, 1)
	assert.True(t, conn.batches[0].sent)
	assert.Equal(t, [][]any{{"db1", "a.log", "x"}, {"db1", "a.log", "y"}}, conn.batches[0].rows)
	assert.Equal(t, []string{"INSERT INTO logs.rds_log_records"}, conn.queries)
}

func TestSendBatch_RetriesWholeSequence(t *testing.T) {
	conn := &fakeConn{next: func(attempt int) *fakeBatch {
		if attempt == 0 {
			return &fakeBatch{sendErr: errors.New("code: 210, message: network error")}
		}
		return &fakeBatch{}
	}}
	c := &Client{conn: conn, retryCfg: testRetryConfig()}

	rows := [][]interface{}{{"r1"}, {"r2"}}
	require.NoError(t, c.SendBatch(context.Background(), "INSERT INTO t", rows))

	require.Len(t, conn.batches, 2)
	assert.False(t, conn.batches[0].sent)
	assert.True(t, conn.batches[1].sent)
	// the retry starts from a fresh batch holding every row
	assert.Len(t, conn.batches[1].rows, 2)
}

func TestSendBatch_AppendErrorAbortsWithoutRetry(t *testing.T) {
	conn := &fakeConn{next: func(int) *fakeBatch {
		return &fakeBatch{appendErr: errors.New("converting string to DateTime is unsupported")}
	}}
	c := &Client{conn: conn, retryCfg: testRetryConfig()}

	err := c.SendBatch(context.Background(), "INSERT INTO t", [][]interface{}{{"bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append to batch")

	require.Len(t, conn.batches, 1)
	assert.True(t, conn.batches[0].aborted)
	assert.False(t, conn.batches[0].sent)
}

func TestSendBatch_PrepareErrorGivesUpAfterMaxAttempts(t *testing.T) {
	conn := &fakeConn{prepareErr: errors.New("dial tcp: connection refused")}
	cfg := testRetryConfig()
	c := &Client{conn: conn, retryCfg: cfg}

	err := c.SendBatch(context.Background(), "INSERT INTO t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare batch")
	assert.Len(t, conn.queries, cfg.MaxAttempts)
}
