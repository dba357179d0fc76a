// Package spark attaches a static page tree to a host application: it
// registers the render command, the spark_url and url_for template funcs
// and a live route serving the tree.
package spark

import (
	"context"
	stderrors "errors"
	"html/template"
	"log/slog"
	"os"
	"sync"

	"git.home.luguber.info/inful/spark/internal/app"
	"git.home.luguber.info/inful/spark/internal/build"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/logfields"
	"git.home.luguber.info/inful/spark/internal/markdown"
	"git.home.luguber.info/inful/spark/internal/metrics"
	"git.home.luguber.info/inful/spark/internal/site"
	"git.home.luguber.info/inful/spark/internal/urls"
)

const (
	// ExtensionKey is the key spark records itself under on the app.
	ExtensionKey = "spark"
	// CommandRender is the name of the registered render command.
	CommandRender = "render"
	// RouteName is the name of the live route serving the tree.
	RouteName = "spark"
)

// Spark is the per-application extension state.
type Spark struct {
	app       *app.App
	pagesDir  string
	outputDir string
	urlOpts   urls.Options
	converter *markdown.Converter

	recorder   metrics.Recorder
	logger     *slog.Logger
	renderOpts []build.Option

	mu       sync.RWMutex
	root     *site.Root
	resolver *urls.Resolver
}

// Option configures Init.
type Option func(*Spark)

// WithRecorder records render metrics.
func WithRecorder(rec metrics.Recorder) Option {
	return func(s *Spark) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithLogger overrides the app logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Spark) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRenderOptions appends options to every render pass.
func WithRenderOptions(opts ...build.Option) Option {
	return func(s *Spark) { s.renderOpts = append(s.renderOpts, opts...) }
}

// Init attaches spark to a. It fails when a already has spark attached.
func Init(a *app.App, opts ...Option) (*Spark, error) {
	if a == nil {
		return nil, serrors.ValidationError("spark needs an application").Build()
	}
	cfg := a.Config
	s := &Spark{
		app:       a,
		pagesDir:  cfg.PagesDir(),
		outputDir: cfg.OutputDir(),
		urlOpts: urls.Options{
			Prefix:          cfg.URLs.Prefix,
			ApplicationRoot: cfg.URLs.ApplicationRoot,
			ServerName:      cfg.URLs.ServerName,
			Scheme:          cfg.URLs.Scheme,
		},
		converter: markdown.New(markdown.Options{
			HighlightStyle: cfg.Markdown.HighlightStyle,
			HardWraps:      cfg.Markdown.HardWraps,
		}),
		recorder: metrics.NoopRecorder{},
		logger:   a.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := a.SetExtension(ExtensionKey, s); err != nil {
		return nil, err
	}

	if s.pagesDir != "" {
		a.Templates.AddSource(os.DirFS(s.pagesDir))
	}
	a.TemplateFuncs(template.FuncMap{
		"spark_url": s.URL,
		"url_for":   s.URLFor,
	})
	if err := a.RegisterCommand(app.Command{
		Name: CommandRender,
		Help: "Render the page tree to the output directory.",
		Run: func(ctx context.Context, args []string) error {
			dir := s.outputDir
			if len(args) > 0 && args[0] != "" {
				dir = args[0]
			}
			_, err := s.RenderTo(ctx, dir)
			return err
		},
	}); err != nil {
		return nil, err
	}
	if err := a.Route(RouteName, "GET /"+s.urlOpts.Prefix+"{path...}", s.Handler()); err != nil {
		return nil, err
	}
	return s, nil
}

// From returns the spark instance attached to a.
func From(a *app.App) (*Spark, bool) {
	v, ok := a.Extension(ExtensionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Spark)
	return s, ok
}

// Load discovers the tree declared under the configured pages folder and
// makes it current.
func (s *Spark) Load() (*site.Root, error) {
	root, err := site.Load(s.pagesDir, site.WithMarkdown(s.converter))
	if err != nil {
		return nil, err
	}
	s.SetRoot(root)
	s.logger.Debug("Loaded page tree",
		logfields.Path(s.pagesDir),
		logfields.Count(len(root.AllPages())))
	return root, nil
}

// NewRoot creates an empty tree over the pages folder for programmatic
// declaration. Install it with SetRoot.
func (s *Spark) NewRoot(opts ...site.Option) (*site.Root, error) {
	return site.NewRoot(s.pagesDir, append([]site.Option{site.WithMarkdown(s.converter)}, opts...)...)
}

// SetRoot replaces the current tree.
func (s *Spark) SetRoot(root *site.Root) {
	var resolver *urls.Resolver
	if root != nil {
		resolver = urls.New(root, s.urlOpts)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.resolver = resolver
}

// Root returns the current tree, or nil.
func (s *Spark) Root() *site.Root {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Resolver returns the resolver of the current tree, or nil.
func (s *Spark) Resolver() *urls.Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

// OutputDir is the configured output directory.
func (s *Spark) OutputDir() string { return s.outputDir }

// Render runs a render pass into the configured output directory.
func (s *Spark) Render(ctx context.Context, opts ...build.Option) (*build.Report, error) {
	return s.RenderTo(ctx, s.outputDir, opts...)
}

// RenderTo runs a render pass into dir.
func (s *Spark) RenderTo(ctx context.Context, dir string, opts ...build.Option) (*build.Report, error) {
	s.mu.RLock()
	root, resolver := s.root, s.resolver
	s.mu.RUnlock()

	cfg := s.app.Config
	all := []build.Option{
		build.WithContinueOnError(cfg.Render.ContinueOnError),
		build.WithClean(cfg.Output.Clean),
		build.WithCopyAssets(cfg.CopyAssets()),
		build.WithReport(cfg.Render.Report),
		build.WithRecorder(s.recorder),
		build.WithLogger(s.logger),
	}
	if cfg.Render.VerifyLinks && resolver != nil {
		all = append(all, build.WithLinkVerification(resolver.Base()))
	}
	all = append(all, s.renderOpts...)
	all = append(all, opts...)

	return build.New(root, s.app, dir, all...).Run(ctx)
}

// URL resolves a page or folder name of the current tree.
func (s *Spark) URL(name string, args ...any) (string, error) {
	resolver := s.Resolver()
	if resolver == nil {
		return "", serrors.WrapError(build.ErrNoRoot, serrors.CategoryConfig, "no page tree declared").
			WithContext("name", name).
			Build()
	}
	return resolver.URL(name, args...)
}

// URLFor resolves name as a page or folder first and falls back to the
// app's named routes.
func (s *Spark) URLFor(name string, args ...any) (string, error) {
	u, err := s.URL(name, args...)
	if err == nil || !(stderrors.Is(err, urls.ErrPageNotFound) || stderrors.Is(err, build.ErrNoRoot)) {
		return u, err
	}
	u, appErr := s.app.URLFor(name, args...)
	if stderrors.Is(appErr, app.ErrRouteNotFound) {
		return "", err
	}
	return u, appErr
}
