package offset

import (
	"context"
	"errors"
	"testing"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	saved   []Progress
	initial Progress
	saveErr error
}

func (m *memoryStore) Load(ctx context.Context) (Progress, error) { return m.initial, nil }

func (m *memoryStore) Save(ctx context.Context, p Progress) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, p.Clone())
	return nil
}

func (m *memoryStore) Close() error { return nil }

func TestTracker_LookupDefaults(t *testing.T) {
	tr, err := NewTracker(context.Background(), &memoryStore{}, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultProgress(), tr.Lookup("db1", "a.log"))
}

func TestTracker_AdvancePrunesAndSaves(t *testing.T) {
	initial := Progress{}
	initial.Set("db1", "expired.log", domain.LogFileProgress{Marker: "9", LastReadTimeMs: 100})
	store := &memoryStore{initial: initial}

	tr, err := NewTracker(context.Background(), store, 500)
	require.NoError(t, err)

	// expired entries are visible until the first save
	assert.Equal(t, "9", tr.Lookup("db1", "expired.log").Marker)

	fp := domain.LogFileProgress{Marker: "1:50", LastReadTimeMs: 1000}
	require.NoError(t, tr.Advance(context.Background(), "db1", "a.log", fp))

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, 1, saved.Len())
	got, ok := saved.Get("db1", "a.log")
	require.True(t, ok)
	assert.Equal(t, fp, got)

	assert.Equal(t, domain.DefaultProgress(), tr.Lookup("db1", "expired.log"))
}

func TestTracker_FailedSaveKeepsPreviousState(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("disk full")}
	tr, err := NewTracker(context.Background(), store, 0)
	require.NoError(t, err)

	err = tr.Advance(context.Background(), "db1", "a.log", domain.LogFileProgress{Marker: "2", LastReadTimeMs: 10})
	require.Error(t, err)
	assert.Equal(t, domain.DefaultProgress(), tr.Lookup("db1", "a.log"))
}
