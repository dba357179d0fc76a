package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("pages", time.Second)
	r.ObserveRenderDuration(time.Second)
	r.IncStageResult("pages", ResultSuccess)
	r.IncRenderOutcome(OutcomeSuccess)
	r.ObservePageDuration("markdown", time.Millisecond, true)
	r.AddBytesWritten(10)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("pages", 150*time.Millisecond)
	pr.ObserveRenderDuration(500 * time.Millisecond)
	pr.IncStageResult("pages", ResultSuccess)
	pr.IncRenderOutcome(OutcomeSuccess)
	pr.ObservePageDuration("page", time.Millisecond, false)
	pr.AddBytesWritten(42)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["spark_render_duration_seconds"])
	require.True(t, names["spark_page_results_total"])
	require.True(t, names["spark_output_bytes_total"])
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveRenderDuration(time.Second)
	pr.AddBytesWritten(1)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRenderOutcome(OutcomeFailed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `spark_render_outcomes_total{outcome="failed"} 1`)
}
