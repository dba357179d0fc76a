package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/spark/internal/config"
	"git.home.luguber.info/inful/spark/internal/daemon"
	"git.home.luguber.info/inful/spark/internal/metrics"
	"git.home.luguber.info/inful/spark/internal/spark"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr  string `name:"addr" help:"Listen address (overrides serve.addr)"`
	Watch bool   `name:"watch" help:"Reload the page tree when declarations change"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	var (
		reg  *prometheus.Registry
		opts []spark.Option
	)
	if cfg.Serve.Metrics {
		reg = prometheus.NewRegistry()
		opts = append(opts, spark.WithRecorder(metrics.NewPrometheusRecorder(reg)))
	}

	a, _, err := NewApp(cfg, logger(g), opts...)
	if err != nil {
		return err
	}

	d, err := daemon.New(a, daemon.Options{
		Addr:     s.Addr,
		Watch:    s.Watch || cfg.Serve.Watch,
		Schedule: cfg.Render.Schedule,
		Registry: reg,
	})
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
