package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stageDuration  *prom.HistogramVec
	renderDuration prom.Histogram
	stageResults   *prom.CounterVec
	renderOutcome  *prom.CounterVec
	pageDuration   *prom.HistogramVec
	pageResults    *prom.CounterVec
	bytesWritten   prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "spark",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual render pass stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.renderDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "spark",
			Name:      "render_duration_seconds",
			Help:      "Total render pass duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spark",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.renderOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spark",
			Name:      "render_outcomes_total",
			Help:      "Render pass outcomes by final status",
		}, []string{"outcome"})
		pr.pageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "spark",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of individual page renders",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"})
		pr.pageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "spark",
			Name:      "page_results_total",
			Help:      "Page render results by success/failure",
		}, []string{"result"})
		pr.bytesWritten = prom.NewCounter(prom.CounterOpts{
			Namespace: "spark",
			Name:      "output_bytes_total",
			Help:      "Bytes written to the output directory",
		})
		reg.MustRegister(pr.stageDuration, pr.renderDuration, pr.stageResults, pr.renderOutcome, pr.pageDuration, pr.pageResults, pr.bytesWritten)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRenderDuration(d time.Duration) {
	if p == nil || p.renderDuration == nil {
		return
	}
	p.renderDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRenderOutcome(outcome RenderOutcomeLabel) {
	if p == nil || p.renderOutcome == nil {
		return
	}
	p.renderOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObservePageDuration(kind string, d time.Duration, success bool) {
	if p == nil || p.pageDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.pageDuration.WithLabelValues(kind, res).Observe(d.Seconds())
	p.pageResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) AddBytesWritten(n int) {
	if p == nil || p.bytesWritten == nil {
		return
	}
	p.bytesWritten.Add(float64(n))
}
