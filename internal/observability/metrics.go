package observability

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via RegisterMetrics.
var (
	regOK atomic.Bool

	apiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rds_log_streamer",
			Name:      "api_calls_total",
			Help:      "Number of remote log API calls.",
		}, []string{"operation", "result"},
	)
	recordsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rds_log_streamer",
			Name:      "records_emitted_total",
			Help:      "Number of log records emitted to the sink.",
		}, []string{"instance"},
	)
	filesHarvested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rds_log_streamer",
			Name:      "files_harvested_total",
			Help:      "Number of log file portions downloaded and committed.",
		}, []string{"instance"},
	)
	downloadedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rds_log_streamer",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes of log data downloaded.",
		}, []string{"instance"},
	)
	stateSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rds_log_streamer",
			Name:      "state_saves_total",
			Help:      "Number of progress store writes.",
		}, []string{"result"},
	)
	trackedFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rds_log_streamer",
			Name:      "tracked_files",
			Help:      "Number of files in the progress store.",
		},
	)
)

// RegisterMetrics registers all metrics with the provided registerer.
// Subsequent calls after success are no-ops.
func RegisterMetrics(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{apiCalls, recordsEmitted, filesHarvested, downloadedBytes, stateSaves, trackedFiles}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// MetricsHandler serves metrics for the given gatherer
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until RegisterMetrics succeeds.

func IncAPICall(operation string, err error) {
	if regOK.Load() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		apiCalls.WithLabelValues(operation, result).Inc()
	}
}

func AddRecordsEmitted(instance string, n int) {
	if regOK.Load() {
		recordsEmitted.WithLabelValues(instance).Add(float64(n))
	}
}

func IncFilesHarvested(instance string) {
	if regOK.Load() {
		filesHarvested.WithLabelValues(instance).Inc()
	}
}

func AddDownloadedBytes(instance string, n int) {
	if regOK.Load() {
		downloadedBytes.WithLabelValues(instance).Add(float64(n))
	}
}

func IncStateSave(result string) {
	if regOK.Load() {
		stateSaves.WithLabelValues(result).Inc()
	}
}

func SetTrackedFiles(n int) {
	if regOK.Load() {
		trackedFiles.Set(float64(n))
	}
}
