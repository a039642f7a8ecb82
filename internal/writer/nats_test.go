package writer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	flushed  int
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakePublisher) FlushWithContext(ctx context.Context) error {
	f.flushed++
	return nil
}

func (f *fakePublisher) Drain() error { return nil }

func TestRecordSubject(t *testing.T) {
	tests := []struct {
		prefix, instance, want string
	}{
		{"rds.logs", "db1", "rds.logs.db1"},
		{"rds.logs", "prod.db*1", "rds.logs.prod_db_1"},
		{"", "db1", "db1"},
		{"rds.logs", "", "rds.logs._"},
	}
	for _, tt := range tests {
		if got := recordSubject(tt.prefix, tt.instance); got != tt.want {
			t.Errorf("recordSubject(%q, %q) = %q, want %q", tt.prefix, tt.instance, got, tt.want)
		}
	}
}

func TestNATSWriter_PublishesRecords(t *testing.T) {
	pub := &fakePublisher{}
	w := &NATSWriter{conn: pub, prefix: "rds.logs"}
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, &domain.LogRecord{InstanceID: "db1", FileName: "a.log", Date: "2024-01-01 00:00:00 UTC", Data: " hi"}))
	require.NoError(t, w.Flush(ctx))

	assert.Equal(t, []string{"rds.logs.db1"}, pub.subjects)
	assert.Equal(t, 1, pub.flushed)

	var got map[string]string
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, " hi", got["logdata"])
	assert.Equal(t, "a.log", got["awsRdsLogFileName"])
}

func TestNATSWriter_PublishError(t *testing.T) {
	w := &NATSWriter{conn: &fakePublisher{err: errors.New("nats: connection closed")}, prefix: "rds.logs"}
	err := w.Write(context.Background(), &domain.LogRecord{InstanceID: "db1"})
	assert.Error(t, err)
}
