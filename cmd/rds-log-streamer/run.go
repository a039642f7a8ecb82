package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/rds-log-streamer/internal/observability"
	"github.com/SteelMorgan/rds-log-streamer/internal/service"
)

func newRunCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Harvest new log data (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreamer(cmd, flags)
		},
	}
}

func runStreamer(cmd *cobra.Command, flags *cliFlags) error {
	cfg, err := flags.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser := observability.InitLogger(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()

	runID := uuid.NewString()
	observability.WithRunID(runID)

	log.Info().
		Str("version", version).
		Strs("instances", cfg.InstanceIDs).
		Bool("run_once", cfg.RunOnce).
		Msg("Starting RDS log streamer")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "rds-log-streamer",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		Protocol:       cfg.Tracing.Protocol,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to shut down tracer")
			}
		}()
	}

	svc, err := service.NewStreamerService(ctx, cfg, runID, cmd.OutOrStdout())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create streamer service")
		return err
	}

	runErr := svc.Start(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("Streamer stopped with error")
	}
	if err := svc.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}

	log.Info().Msg("RDS log streamer stopped")
	return runErr
}
