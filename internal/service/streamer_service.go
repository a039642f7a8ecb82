package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/clickhouse"
	"github.com/SteelMorgan/rds-log-streamer/internal/config"
	"github.com/SteelMorgan/rds-log-streamer/internal/observability"
	"github.com/SteelMorgan/rds-log-streamer/internal/offset"
	"github.com/SteelMorgan/rds-log-streamer/internal/rds"
	"github.com/SteelMorgan/rds-log-streamer/internal/streamer"
	"github.com/SteelMorgan/rds-log-streamer/internal/writer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// StreamerService wires the log source, progress store and record writer
// into a streamer and owns their lifecycle
type StreamerService struct {
	cfg      *config.Config
	runID    string
	store    offset.ProgressStore
	writer   writer.RecordWriter
	chClient *clickhouse.Client
	streamer *streamer.Streamer
	metrics  *http.Server
}

// NewStreamerService creates the service with a throttled RDS source built from
// the default AWS configuration. Records written to stdout go to out.
func NewStreamerService(ctx context.Context, cfg *config.Config, runID string, out io.Writer) (*StreamerService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	source, err := rds.NewAWSSource(ctx, cfg.AWSRegion, cfg.DownloadLines, cfg.APICallDelay())
	if err != nil {
		return nil, err
	}
	return newStreamerService(ctx, cfg, runID, source, out, time.Now())
}

func newStreamerService(ctx context.Context, cfg *config.Config, runID string, source rds.LogSource, out io.Writer, now time.Time) (*StreamerService, error) {
	s := &StreamerService{cfg: cfg, runID: runID}

	thresholdMs := streamer.Threshold(now, cfg.MinutesInPastToStart)
	cutoffMs := offset.Cutoff(thresholdMs, cfg.RetentionDays)

	store, err := offset.Open(cfg.StateBackend, cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}
	s.store = store

	tracker, err := offset.NewTracker(ctx, store, cutoffMs)
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var mirror writer.ProgressMirror
	switch cfg.Sink {
	case writer.KindClickHouse:
		client, err := clickhouse.NewClient(ctx, cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.chClient = client
		chWriter := writer.NewClickHouseWriter(client, cfg.ClickHouse.Database, writer.BatchConfig{MaxSize: cfg.BatchSize}, runID)
		if err := chWriter.EnsureSchema(ctx); err != nil {
			s.Stop()
			return nil, err
		}
		s.writer = chWriter
		if cfg.ClickHouse.MirrorProgress {
			mirror = chWriter
		}
	case writer.KindNATS:
		natsWriter, err := writer.NewNATSWriter(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.writer = natsWriter
	default:
		s.writer = writer.NewJSONLinesWriter(out)
	}

	s.streamer = streamer.New(source, tracker, s.writer, streamer.Options{
		InstanceIDs: cfg.InstanceIDs,
		ThresholdMs: thresholdMs,
		RunOnce:     cfg.RunOnce,
		RunID:       runID,
	})
	if mirror != nil {
		s.streamer.SetProgressMirror(mirror)
	}

	log.Info().
		Str("state_file", cfg.StateFile).
		Str("state_backend", cfg.StateBackend).
		Str("sink", cfg.Sink).
		Int64("threshold_ms", thresholdMs).
		Int64("retention_cutoff_ms", cutoffMs).
		Msg("Streamer service created")

	return s, nil
}

// Start serves metrics (if configured) and runs the streamer until it
// finishes or ctx is cancelled
func (s *StreamerService) Start(ctx context.Context) error {
	if s.cfg.MetricsAddr != "" {
		if err := s.startMetrics(); err != nil {
			return err
		}
	}

	log.Info().Msg("Streamer service starting...")
	return s.streamer.Run(ctx)
}

func (s *StreamerService) startMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := observability.RegisterMetrics(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler(reg))
	s.metrics = &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", s.cfg.MetricsAddr).Msg("Metrics server failed")
		}
	}()

	log.Info().Str("addr", s.cfg.MetricsAddr).Msg("Serving metrics")
	return nil
}

// Stop flushes the writer and releases the store and connections
func (s *StreamerService) Stop() error {
	log.Info().Msg("Streamer service stopping...")

	var errs []error
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
	}
	if s.chClient != nil {
		if err := s.chClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clickhouse: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close progress store: %w", err))
		}
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	return errors.Join(errs...)
}
