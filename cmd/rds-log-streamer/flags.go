package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/rds-log-streamer/internal/config"
)

type cliFlags struct {
	configPath    string
	instanceIDs   []string
	minutesInPast int
	apiCallDelay  float64
	stateFile     string
	stateBackend  string
	retentionDays int
	logLevel      string
	logFile       string
	runOnce       bool
	downloadLines int
	sink          string
	metricsAddr   string
}

func (f *cliFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML configuration file")
	pf.StringSliceVarP(&f.instanceIDs, "db-instance-ids", "d", nil, "RDS instance identifiers to read logs from")
	pf.IntVarP(&f.minutesInPast, "minutes-in-the-past-to-start", "m", 0, "Skip files last written before this many minutes ago")
	pf.Float64VarP(&f.apiCallDelay, "api-call-delay-seconds", "a", 0, "Delay before every RDS API call")
	pf.StringVarP(&f.stateFile, "log-state-file", "s", "", "Progress state file")
	pf.StringVar(&f.stateBackend, "state-backend", "", "Progress store backend (json or boltdb)")
	pf.IntVarP(&f.retentionDays, "retention-days", "r", 0, "Forget progress for files not read within this many days")
	pf.StringVarP(&f.logLevel, "log-level", "l", "", "Diagnostic log level")
	pf.StringVarP(&f.logFile, "log-filename", "f", "", "Diagnostic log file")
	pf.BoolVarP(&f.runOnce, "run-once", "o", false, "Do a single pass and exit")
	pf.IntVar(&f.downloadLines, "download-lines", 0, "Lines per download request (0 = API default)")
	pf.StringVar(&f.sink, "sink", "", "Record sink (stdout, clickhouse or nats)")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// loadConfig layers explicitly set flags over file and environment configuration
func (f *cliFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(f.configPath))
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	return cfg, nil
}

func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("db-instance-ids") {
		cfg.InstanceIDs = f.instanceIDs
	}
	if changed("minutes-in-the-past-to-start") {
		cfg.MinutesInPastToStart = f.minutesInPast
	}
	if changed("api-call-delay-seconds") {
		cfg.APICallDelaySeconds = f.apiCallDelay
	}
	if changed("log-state-file") {
		cfg.StateFile = f.stateFile
	}
	if changed("state-backend") {
		cfg.StateBackend = f.stateBackend
	}
	if changed("retention-days") {
		cfg.RetentionDays = f.retentionDays
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-filename") {
		cfg.LogFile = f.logFile
	}
	if changed("run-once") {
		cfg.RunOnce = f.runOnce
	}
	if changed("download-lines") {
		cfg.DownloadLines = f.downloadLines
	}
	if changed("sink") {
		cfg.Sink = f.sink
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}
