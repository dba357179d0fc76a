package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/frontmatter"
	"git.home.luguber.info/inful/spark/internal/linkverify"
	"git.home.luguber.info/inful/spark/internal/logfields"
	"git.home.luguber.info/inful/spark/internal/metrics"
	"git.home.luguber.info/inful/spark/internal/site"
)

// Host is the application side of a render pass.
type Host interface {
	site.Templater
	// TemplateContext returns the ambient values every page sees.
	TemplateContext() map[string]any
}

// Renderer executes render passes for one page tree.
type Renderer struct {
	root      *site.Root
	host      Host
	outputDir string

	continueOnError bool
	clean           bool
	copyAssets      bool
	linkBase        string
	writeReport     bool

	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithContinueOnError renders every page even after failures.
func WithContinueOnError(v bool) Option { return func(r *Renderer) { r.continueOnError = v } }

// WithClean removes the output directory before rendering.
func WithClean(v bool) Option { return func(r *Renderer) { r.clean = v } }

// WithCopyAssets copies non-template files of every folder to the output.
func WithCopyAssets(v bool) Option { return func(r *Renderer) { r.copyAssets = v } }

// WithLinkVerification checks links between written pages. baseURL is the
// public URL of the output directory; empty disables verification.
func WithLinkVerification(baseURL string) Option { return func(r *Renderer) { r.linkBase = baseURL } }

// WithReport writes ReportFile to the output directory after the pass.
func WithReport(v bool) Option { return func(r *Renderer) { r.writeReport = v } }

// WithRecorder injects a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Renderer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Renderer writing root's pages below outputDir.
func New(root *site.Root, host Host, outputDir string, opts ...Option) *Renderer {
	r := &Renderer{
		root:       root,
		host:       host,
		outputDir:  outputDir,
		copyAssets: true,
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one render pass. The returned report is never nil, also
// when the pass fails.
func (r *Renderer) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		OutputDir: r.outputDir,
	}
	logger := r.logger.With(logfields.RunID(report.RunID))

	status, err := r.run(ctx, logger, report)
	report.finish(status, err)
	r.recorder.IncRenderOutcome(status.outcome())
	r.recorder.ObserveRenderDuration(time.Since(report.StartTime))

	if r.writeReport && r.outputDir != "" {
		if werr := report.write(r.outputDir); werr != nil {
			logger.Warn("Failed to write render report", logfields.Error(werr))
		}
	}

	if err != nil {
		logger.Error("Render pass failed",
			slog.String("status", string(status)),
			logfields.Count(report.Rendered()),
			logfields.Error(err))
		return report, err
	}
	logger.Info("Render pass complete",
		logfields.Output(r.outputDir),
		logfields.Count(report.Rendered()),
		logfields.DurationMS(float64(time.Since(report.StartTime).Milliseconds())))
	return report, nil
}

func (r *Renderer) run(ctx context.Context, logger *slog.Logger, report *Report) (Status, error) {
	if r.root == nil {
		return StatusFailed, serrors.WrapError(ErrNoRoot, serrors.CategoryConfig, "no page tree declared").
			Fatal().
			Build()
	}
	if err := r.prepare(); err != nil {
		return StatusFailed, err
	}

	// Stage: pages
	stageStart := time.Now()
	ambient := r.host.TemplateContext()
	var failures []error
	walkErr := r.root.Walk(func(e site.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Page == nil {
			return nil
		}
		res, err := r.renderPage(ctx, e.Page, ambient)
		report.Pages = append(report.Pages, res)
		if err == nil {
			logger.Debug("Rendered page", logfields.Page(res.Page), logfields.Output(res.Output))
			return nil
		}
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.Warn("Page failed to render", logfields.Page(res.Page), logfields.Error(err))
		if !r.continueOnError {
			return err
		}
		failures = append(failures, err)
		return nil
	})
	r.recorder.ObserveStageDuration("pages", time.Since(stageStart))

	if walkErr != nil {
		if ctx.Err() != nil {
			r.recorder.IncStageResult("pages", metrics.ResultCanceled)
			return StatusCanceled, ctx.Err()
		}
		r.recorder.IncStageResult("pages", metrics.ResultFatal)
		return StatusFailed, walkErr
	}
	if len(failures) > 0 {
		r.recorder.IncStageResult("pages", metrics.ResultWarning)
	} else {
		r.recorder.IncStageResult("pages", metrics.ResultSuccess)
	}

	// Stage: assets
	if r.copyAssets {
		stageStart = time.Now()
		assets, err := r.copyFolderAssets(ctx, report)
		report.Assets = assets
		r.recorder.ObserveStageDuration("assets", time.Since(stageStart))
		if err != nil {
			r.recorder.IncStageResult("assets", metrics.ResultFatal)
			if ctx.Err() != nil {
				return StatusCanceled, ctx.Err()
			}
			return StatusFailed, err
		}
		r.recorder.IncStageResult("assets", metrics.ResultSuccess)
	}

	// Stage: links
	if r.linkBase != "" {
		stageStart = time.Now()
		broken, err := r.verifyLinks(ctx, report)
		report.BrokenLinks = broken
		r.recorder.ObserveStageDuration("links", time.Since(stageStart))
		switch {
		case err != nil:
			r.recorder.IncStageResult("links", metrics.ResultFatal)
			if ctx.Err() != nil {
				return StatusCanceled, ctx.Err()
			}
			return StatusFailed, err
		case len(broken) > 0:
			r.recorder.IncStageResult("links", metrics.ResultWarning)
			for _, b := range broken {
				logger.Warn("Broken internal link", logfields.Page(b.Page), logfields.URL(b.URL), logfields.Path(b.Target))
			}
		default:
			r.recorder.IncStageResult("links", metrics.ResultSuccess)
		}
	}

	if len(failures) > 0 {
		joined := stderrors.Join(append([]error{ErrPagesFailed}, failures...)...)
		return StatusPartial, serrors.WrapError(joined, serrors.CategoryRender,
			fmt.Sprintf("%d of %d pages failed to render", len(failures), len(report.Pages))).
			Build()
	}
	return StatusSuccess, nil
}

// prepare validates and creates the output directory.
func (r *Renderer) prepare() error {
	if r.outputDir == "" {
		return serrors.WrapError(ErrNoOutputDir, serrors.CategoryConfig, "output directory is required").
			Fatal().
			Build()
	}
	out, err := filepath.Abs(r.outputDir)
	if err != nil {
		return serrors.WrapError(err, serrors.CategoryConfig, "invalid output directory").
			WithContext("output", r.outputDir).
			Build()
	}
	r.outputDir = out

	if within(out, r.root.BaseDir()) || within(r.root.BaseDir(), out) {
		return serrors.WrapError(ErrOutputOverlaps, serrors.CategoryConfig, "output directory must not contain or be inside the pages folder").
			WithContext("output", out).
			WithContext("path", r.root.BaseDir()).
			Fatal().
			Build()
	}

	if r.clean {
		if err := os.RemoveAll(out); err != nil {
			return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to clean output directory").
				WithContext("output", out).
				Build()
		}
	}
	if err := os.MkdirAll(out, 0o750); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to create output directory").
			WithContext("output", out).
			Build()
	}
	return nil
}

func (r *Renderer) renderPage(ctx context.Context, p *site.Page, ambient map[string]any) (PageResult, error) {
	start := time.Now()
	res := PageResult{
		Page:     p.Path(),
		Endpoint: p.Endpoint(),
		Output:   p.OutputPath(),
		Kind:     p.Kind(),
	}
	if p.Kind() == site.KindMarkdown {
		res.Fingerprint = sourceFingerprint(p.SourceFile())
	}

	out, err := p.Render(ctx, r.host, ambient)
	if err == nil {
		err = r.write(p.OutputPath(), []byte(out))
	}

	elapsed := time.Since(start)
	res.DurationMS = elapsed.Milliseconds()
	r.recorder.ObservePageDuration(p.Kind(), elapsed, err == nil)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Bytes = len(out)
	r.recorder.AddBytesWritten(len(out))
	return res, nil
}

// write stores data at rel below the output directory.
func (r *Renderer) write(rel string, data []byte) error {
	target, err := r.target(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to create output folder").
			WithContext("output", target).
			Build()
	}
	// #nosec G306 -- rendered pages are public static files
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to write page").
			WithContext("output", target).
			Build()
	}
	return nil
}

// target maps an output-relative slash path to a file inside the output directory.
func (r *Renderer) target(rel string) (string, error) {
	target := filepath.Join(r.outputDir, filepath.FromSlash(rel))
	if !within(r.outputDir, target) || target == r.outputDir {
		return "", serrors.WrapError(ErrOutsideOutput, serrors.CategoryValidation, "output path escapes the output directory").
			WithContext("output", rel).
			Build()
	}
	return target, nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// sourceFingerprint identifies a markdown source; empty when unreadable.
func sourceFingerprint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return ""
	}
	return doc.Fingerprint()
}

func (r *Renderer) verifyLinks(ctx context.Context, report *Report) ([]linkverify.BrokenLink, error) {
	v, err := linkverify.New(r.outputDir, r.linkBase)
	if err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryConfig, "invalid link verification base").Build()
	}
	var pages []string
	for _, p := range report.Pages {
		if p.Error == "" && strings.HasSuffix(p.Output, ".html") {
			pages = append(pages, p.Output)
		}
	}
	return v.Verify(ctx, pages)
}
