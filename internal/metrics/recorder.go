package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// RenderOutcomeLabel is the final status of a render pass.
type RenderOutcomeLabel string

const (
	OutcomeSuccess  RenderOutcomeLabel = "success"
	OutcomePartial  RenderOutcomeLabel = "partial"
	OutcomeFailed   RenderOutcomeLabel = "failed"
	OutcomeCanceled RenderOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for render pass and page metrics.
// Implementations may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRenderDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRenderOutcome(outcome RenderOutcomeLabel)
	ObservePageDuration(kind string, d time.Duration, success bool)
	AddBytesWritten(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)      {}
func (NoopRecorder) ObserveRenderDuration(time.Duration)             {}
func (NoopRecorder) IncStageResult(string, ResultLabel)              {}
func (NoopRecorder) IncRenderOutcome(RenderOutcomeLabel)             {}
func (NoopRecorder) ObservePageDuration(string, time.Duration, bool) {}
func (NoopRecorder) AddBytesWritten(int)                             {}
