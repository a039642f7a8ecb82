package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/config"
	"github.com/SteelMorgan/rds-log-streamer/internal/offset"
	"github.com/SteelMorgan/rds-log-streamer/internal/rds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	listing *rds.LogFileListing
	portion *rds.LogPortion
	markers []string
}

func (s *stubSource) ListLogFiles(ctx context.Context, instanceID string) (*rds.LogFileListing, error) {
	return s.listing, nil
}

func (s *stubSource) DownloadPortion(ctx context.Context, instanceID, fileName, marker string) (*rds.LogPortion, error) {
	s.markers = append(s.markers, marker)
	return s.portion, nil
}

func testConfig(t *testing.T, backend string) *config.Config {
	cfg := config.Default()
	cfg.InstanceIDs = []string{"db1"}
	cfg.RunOnce = true
	cfg.APICallDelaySeconds = 0
	cfg.StateBackend = backend
	cfg.StateFile = filepath.Join(t.TempDir(), "state")
	return cfg
}

func TestStreamerService_RunOnce(t *testing.T) {
	for _, backend := range []string{offset.BackendJSON, offset.BackendBoltDB} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
			cfg := testConfig(t, backend)

			src := &stubSource{
				listing: &rds.LogFileListing{
					ServerTimeMs: now.UnixMilli(),
					Files:        []rds.RemoteLogFile{{Name: "error/postgres.log", LastWrittenMs: now.UnixMilli() - 1000}},
				},
				portion: &rds.LogPortion{
					Content:    "2024-06-01 11:59:59 UTC:[1]:LOG: checkpoint complete\n",
					NextMarker: "8:512",
				},
			}

			// threshold is one minute before now
			cfg.MinutesInPastToStart = 1
			var out bytes.Buffer
			svc, err := newStreamerService(ctx, cfg, "run-1", src, &out, now)
			require.NoError(t, err)
			require.NoError(t, svc.Start(ctx))
			require.NoError(t, svc.Stop())

			assert.Equal(t, []string{"0"}, src.markers)
			assert.Equal(t, 1, strings.Count(out.String(), "\n"))
			assert.Contains(t, out.String(), `"logdata":":[1]:LOG: checkpoint complete\n"`)

			store, err := offset.Open(backend, cfg.StateFile)
			require.NoError(t, err)
			defer store.Close()
			p, err := store.Load(ctx)
			require.NoError(t, err)
			fp, ok := p.Get("db1", "error/postgres.log")
			require.True(t, ok)
			assert.Equal(t, "8:512", fp.Marker)
			assert.Equal(t, now.UnixMilli(), fp.LastReadTimeMs)
		})
	}
}

func TestStreamerService_StateLocked(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, offset.BackendJSON)

	held, err := offset.Open(cfg.StateBackend, cfg.StateFile)
	require.NoError(t, err)
	defer held.Close()

	_, err = newStreamerService(ctx, cfg, "run-2", &stubSource{}, &bytes.Buffer{}, time.Now())
	require.ErrorIs(t, err, offset.ErrStateLocked)
}
