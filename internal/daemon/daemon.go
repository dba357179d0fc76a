// Package daemon runs the long-lived serve mode: the application's HTTP
// server, an optional page tree watcher and an optional render schedule.
package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/spark/internal/app"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/logfields"
	"git.home.luguber.info/inful/spark/internal/metrics"
	"git.home.luguber.info/inful/spark/internal/spark"
)

// MetricsPath is where Prometheus metrics are exposed when enabled.
const MetricsPath = "/metrics"

const shutdownTimeout = 10 * time.Second

// Options configures a Daemon.
type Options struct {
	Addr     string
	Watch    bool
	Schedule string
	// Registry exposes metrics at MetricsPath when set.
	Registry *prometheus.Registry
	Debounce time.Duration
}

// Daemon serves an application with spark attached.
type Daemon struct {
	app    *app.App
	spark  *spark.Spark
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// New creates a daemon for a. Spark must already be attached.
func New(a *app.App, opts Options) (*Daemon, error) {
	s, ok := spark.From(a)
	if !ok {
		return nil, serrors.ConfigError("spark is not initialized for this app").Build()
	}
	if opts.Addr == "" {
		opts.Addr = a.Config.Serve.Addr
	}
	return &Daemon{app: a, spark: s, opts: opts, logger: a.Logger}, nil
}

// Handler is the application handler plus the metrics endpoint.
func (d *Daemon) Handler() http.Handler {
	appHandler := d.app.Handler()
	if d.opts.Registry == nil {
		return appHandler
	}
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, metrics.HTTPHandler(d.opts.Registry))
	mux.Handle("/", appHandler)
	return mux
}

// Addr is the bound listen address once Run has started serving.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", d.opts.Addr)
	if err != nil {
		return serrors.WrapError(err, serrors.CategoryRuntime, "failed to listen").
			WithContext("addr", d.opts.Addr).
			Build()
	}
	d.mu.Lock()
	d.addr = ln.Addr()
	d.mu.Unlock()

	var wg sync.WaitGroup

	if d.opts.Watch {
		w, err := NewWatcher(d.app.Config.PagesDir(), d.opts.Debounce, d.logger, func(context.Context) error {
			_, err := d.spark.Load()
			return err
		})
		if err != nil {
			_ = ln.Close()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}

	if d.opts.Schedule != "" {
		sched, err := NewScheduler(d.logger)
		if err != nil {
			_ = ln.Close()
			return err
		}
		if _, err := sched.ScheduleRender(ctx, d.opts.Schedule, func(ctx context.Context) error {
			_, err := d.spark.Render(ctx)
			return err
		}); err != nil {
			_ = ln.Close()
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				d.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if stderrors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()
	d.logger.Info("Serving", logfields.URL("http://"+ln.Addr().String()))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = serrors.WrapError(err, serrors.CategoryRuntime, "http server failed").Build()
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = serrors.WrapError(err, serrors.CategoryRuntime, "http server shutdown failed").Build()
	}
	wg.Wait()
	d.logger.Info("Server stopped")
	return runErr
}
