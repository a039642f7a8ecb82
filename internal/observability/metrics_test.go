package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncAPICall("download_portion", nil)
	IncAPICall("download_portion", errors.New("throttled"))
	AddRecordsEmitted("db-metrics", 3)
	IncFilesHarvested("db-metrics")
	AddDownloadedBytes("db-metrics", 128)
	IncStateSave("ok")
	SetTrackedFiles(4)

	if got := testutil.ToFloat64(recordsEmitted.WithLabelValues("db-metrics")); got != 3 {
		t.Errorf("records_emitted_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(apiCalls.WithLabelValues("download_portion", "error")); got < 1 {
		t.Errorf("api_calls_total{result=error} = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(trackedFiles); got != 4 {
		t.Errorf("tracked_files = %v, want 4", got)
	}

	srv := httptest.NewServer(MetricsHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "rds_log_streamer_files_harvested_total") {
		t.Errorf("metrics output missing files_harvested_total")
	}
}
