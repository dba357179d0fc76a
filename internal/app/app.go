// Package app is the host application spark plugs into: it owns the
// configuration, the template environment, named HTTP routes, template
// context processors and CLI-invokable commands.
package app

import (
	"context"
	"html/template"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/spark/internal/config"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/server/middleware"
	"git.home.luguber.info/inful/spark/internal/templates"
)

// ContextProcessor contributes ambient values to every template render.
type ContextProcessor func() map[string]any

// Command is a named operation runnable from the command line.
type Command struct {
	Name string
	Help string
	Run  func(ctx context.Context, args []string) error
}

// App is a host application instance.
type App struct {
	Config    *config.Config
	Templates *templates.Environment
	Logger    *slog.Logger

	mu         sync.RWMutex
	routes     []*Route
	byName     map[string]*Route
	processors []ContextProcessor
	commands   map[string]Command
	extensions map[string]any
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Logger = l
		}
	}
}

// New creates an application for cfg. Templates are read from the
// configured templates folder, if any.
func New(cfg *config.Config, opts ...Option) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		Config:     cfg,
		Templates:  templates.New(),
		Logger:     slog.Default(),
		byName:     map[string]*Route{},
		commands:   map[string]Command{},
		extensions: map[string]any{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if dir := cfg.TemplatesDir(); dir != "" {
		a.Templates.AddSource(os.DirFS(dir))
	}
	a.Templates.Funcs(template.FuncMap{"url_for": a.URLFor})
	a.ContextProcessor(func() map[string]any { return maps.Clone(cfg.Params) })
	return a
}

// TemplateFuncs registers template functions.
func (a *App) TemplateFuncs(funcs template.FuncMap) { a.Templates.Funcs(funcs) }

// ContextProcessor registers fn; later processors override earlier keys.
func (a *App) ContextProcessor(fn ContextProcessor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processors = append(a.processors, fn)
}

// TemplateContext collects the values of every context processor.
func (a *App) TemplateContext() map[string]any {
	a.mu.RLock()
	processors := append([]ContextProcessor(nil), a.processors...)
	a.mu.RUnlock()

	ctx := map[string]any{}
	for _, p := range processors {
		maps.Copy(ctx, p())
	}
	return ctx
}

func (a *App) withContext(data map[string]any) map[string]any {
	merged := a.TemplateContext()
	maps.Copy(merged, data)
	return merged
}

// RenderTemplate renders a named template with the ambient context
// underneath data.
func (a *App) RenderTemplate(name string, data map[string]any) (string, error) {
	return a.Templates.RenderTemplate(name, a.withContext(data))
}

// RenderString renders src as a template with the ambient context
// underneath data.
func (a *App) RenderString(name, src string, data map[string]any) (string, error) {
	return a.Templates.RenderString(name, src, a.withContext(data))
}

// RegisterCommand adds a command. Names are unique.
func (a *App) RegisterCommand(cmd Command) error {
	if cmd.Name == "" || cmd.Run == nil {
		return serrors.ValidationError("command needs a name and a run function").Build()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.commands[cmd.Name]; ok {
		return serrors.AlreadyExistsError("command already registered").
			WithContext("command", cmd.Name).
			Build()
	}
	a.commands[cmd.Name] = cmd
	return nil
}

// Commands lists registered commands by name.
func (a *App) Commands() []Command {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cmds := make([]Command, 0, len(a.commands))
	for _, c := range a.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// RunCommand runs the named command.
func (a *App) RunCommand(ctx context.Context, name string, args []string) error {
	a.mu.RLock()
	cmd, ok := a.commands[name]
	a.mu.RUnlock()
	if !ok {
		return serrors.NotFoundError("unknown command").
			WithContext("command", name).
			Build()
	}
	return cmd.Run(ctx, args)
}

// SetExtension records per-application state of an extension. Each key
// can be set once.
func (a *App) SetExtension(key string, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.extensions[key]; ok {
		return serrors.AlreadyExistsError("extension already initialized for this app").
			WithContext("extension", key).
			Build()
	}
	a.extensions[key] = v
	return nil
}

// Extension returns the state an extension recorded.
func (a *App) Extension(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.extensions[key]
	return v, ok
}

// Handler serves every route below the configured application root,
// wrapped in request logging and panic recovery.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range a.Routes() {
		mux.Handle(r.Pattern, r.Handler)
	}

	var h http.Handler = mux
	if prefix := strings.TrimSuffix(a.Config.URLs.ApplicationRoot, "/"); prefix != "" {
		h = http.StripPrefix(prefix, mux)
	}
	return middleware.Chain(a.Logger)(h)
}
