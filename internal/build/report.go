package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/linkverify"
	"git.home.luguber.info/inful/spark/internal/metrics"
)

// ReportFile is the name of the JSON report written to the output directory.
const ReportFile = ".spark-report.json"

// Status represents the outcome of a render pass.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial" // some pages failed with continue-on-error
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

func (s Status) outcome() metrics.RenderOutcomeLabel {
	switch s {
	case StatusSuccess:
		return metrics.OutcomeSuccess
	case StatusPartial:
		return metrics.OutcomePartial
	case StatusCanceled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}

// PageResult records one rendered (or failed) page.
type PageResult struct {
	Page     string `json:"page"`
	Endpoint string `json:"endpoint"`
	Output   string `json:"output"`
	Kind     string `json:"kind"`
	Bytes    int    `json:"bytes"`
	// Fingerprint identifies the markdown source content, front matter included.
	Fingerprint string `json:"fingerprint,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a render pass.
type Report struct {
	RunID       string                  `json:"run_id"`
	Status      Status                  `json:"status"`
	OutputDir   string                  `json:"output_dir"`
	StartTime   time.Time               `json:"start_time"`
	EndTime     time.Time               `json:"end_time"`
	DurationMS  int64                   `json:"duration_ms"`
	Pages       []PageResult            `json:"pages"`
	Assets      []string                `json:"assets,omitempty"`
	BrokenLinks []linkverify.BrokenLink `json:"broken_links,omitempty"`
	Errors      []string                `json:"errors,omitempty"`
}

// Rendered counts pages written successfully.
func (r *Report) Rendered() int {
	n := 0
	for _, p := range r.Pages {
		if p.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts pages that failed.
func (r *Report) Failed() int { return len(r.Pages) - r.Rendered() }

func (r *Report) finish(status Status, err error) {
	r.Status = status
	r.EndTime = time.Now()
	r.DurationMS = r.EndTime.Sub(r.StartTime).Milliseconds()
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// write stores the report as indented JSON in dir.
func (r *Report) write(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return serrors.WrapError(err, serrors.CategoryInternal, "failed to encode render report").Build()
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to write render report").
			WithContext("path", path).
			Build()
	}
	return nil
}

// ReadReport loads a report written by a previous pass.
func ReadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
