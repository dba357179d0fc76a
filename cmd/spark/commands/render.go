package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/spark/internal/spark"
)

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Output          string `short:"o" name:"output" help:"Output directory (overrides output.directory)" type:"path"`
	ContinueOnError bool   `name:"continue-on-error" help:"Render every page and report all failures"`
}

func (r *RenderCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, s, err := LoadApp(root.Config, logger(g))
	if err != nil {
		return err
	}
	if r.ContinueOnError {
		a.Config.Render.ContinueOnError = true
	}

	out := s.OutputDir()
	if r.Output != "" {
		out = r.Output
	}
	if err := a.RunCommand(ctx, spark.CommandRender, []string{out}); err != nil {
		return err
	}
	fmt.Printf("Rendered %d pages to %s\n", len(s.Root().AllPages()), out)
	return nil
}
