package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Harvest settings
	InstanceIDs          []string `yaml:"db_instance_ids"`
	MinutesInPastToStart int      `yaml:"minutes_in_the_past_to_start"`
	APICallDelaySeconds  float64  `yaml:"api_call_delay_seconds"`
	RetentionDays        int      `yaml:"retention_days"`
	RunOnce              bool     `yaml:"run_once"`
	DownloadLines        int      `yaml:"download_lines"` // 0 = API default
	AWSRegion            string   `yaml:"aws_region"`

	// Progress state
	StateFile    string `yaml:"log_state_file"`
	StateBackend string `yaml:"state_backend"` // json or boltdb

	// Record output
	Sink       string           `yaml:"sink"` // stdout, clickhouse or nats
	BatchSize  int              `yaml:"batch_size"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`

	// Observability
	LogLevel    string        `yaml:"log_level"`
	LogFile     string        `yaml:"log_filename"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// ClickHouseConfig configures the ClickHouse sink
type ClickHouseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	MirrorProgress bool   `yaml:"mirror_progress"`
}

// NATSConfig configures the NATS sink
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		MinutesInPastToStart: 0,
		APICallDelaySeconds:  1.0,
		RetentionDays:        7,
		StateFile:            "log_state.json",
		StateBackend:         "json",
		Sink:                 "stdout",
		BatchSize:            10000,
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "logs",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "rds.logs",
		},
		LogLevel: "info",
		LogFile:  "rds_log_streamer.log",
		Tracing: TracingConfig{
			Protocol: "grpc",
		},
	}
}

// Load builds configuration from defaults, the optional YAML file at path
// and environment variables, in that order of precedence
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if ids := parseList(getEnv("DB_INSTANCE_IDS", "")); len(ids) > 0 {
		c.InstanceIDs = ids
	}
	c.MinutesInPastToStart = getEnvInt("MINUTES_IN_THE_PAST_TO_START", c.MinutesInPastToStart)
	c.APICallDelaySeconds = getEnvFloat("API_CALL_DELAY_SECONDS", c.APICallDelaySeconds)
	c.RetentionDays = getEnvInt("RETENTION_DAYS", c.RetentionDays)
	c.RunOnce = getEnvBool("RUN_ONCE", c.RunOnce)
	c.DownloadLines = getEnvInt("DOWNLOAD_LINES", c.DownloadLines)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.StateFile = getEnv("LOG_STATE_FILE", c.StateFile)
	c.StateBackend = getEnv("STATE_BACKEND", c.StateBackend)

	c.Sink = getEnv("SINK", c.Sink)
	c.BatchSize = getEnvInt("BATCH_SIZE", c.BatchSize)
	c.ClickHouse.Host = getEnv("CLICKHOUSE_HOST", c.ClickHouse.Host)
	c.ClickHouse.Port = getEnvInt("CLICKHOUSE_PORT", c.ClickHouse.Port)
	c.ClickHouse.Database = getEnv("CLICKHOUSE_DB", c.ClickHouse.Database)
	c.ClickHouse.MirrorProgress = getEnvBool("CLICKHOUSE_MIRROR_PROGRESS", c.ClickHouse.MirrorProgress)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILENAME", c.LogFile)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("TRACING_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.Protocol = getEnv("TRACING_PROTOCOL", c.Tracing.Protocol)
}

// APICallDelay returns the per-call delay as a duration
func (c *Config) APICallDelay() time.Duration {
	return time.Duration(c.APICallDelaySeconds * float64(time.Second))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.InstanceIDs) == 0 {
		return fmt.Errorf("at least one db instance id is required")
	}
	for _, id := range c.InstanceIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("db instance ids must not be empty")
		}
	}
	if c.MinutesInPastToStart < 0 {
		return fmt.Errorf("minutes_in_the_past_to_start must not be negative")
	}
	if c.APICallDelaySeconds < 0 {
		return fmt.Errorf("api_call_delay_seconds must not be negative")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	if c.DownloadLines < 0 {
		return fmt.Errorf("download_lines must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, critical, got %q", c.LogLevel)
	}
	if c.StateFile == "" {
		return fmt.Errorf("log_state_file is required")
	}
	switch c.StateBackend {
	case "json", "boltdb":
	default:
		return fmt.Errorf("state_backend must be json or boltdb, got %q", c.StateBackend)
	}
	switch c.Sink {
	case "stdout", "nats":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHouse.Port <= 0 || c.ClickHouse.Port > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouse.Database == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
	default:
		return fmt.Errorf("sink must be stdout, clickhouse or nats, got %q", c.Sink)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parseList parses a comma or semicolon separated list
func parseList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
