package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/spark/internal/app"
	"git.home.luguber.info/inful/spark/internal/spark"
)

// RoutesCmd implements the 'routes' command.
type RoutesCmd struct{}

func (r *RoutesCmd) Run(g *Global, root *CLI) error {
	a, s, err := LoadApp(root.Config, logger(g))
	if err != nil {
		return err
	}
	return PrintRoutes(os.Stdout, a, s)
}

// PrintRoutes writes the app's routes followed by every page's endpoint
// and URL.
func PrintRoutes(w io.Writer, a *app.App, s *spark.Spark) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ROUTE\tPATTERN")
	for _, r := range a.Routes() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Name, r.Pattern)
	}
	_, _ = fmt.Fprintln(tw)
	_, _ = fmt.Fprintln(tw, "PAGE\tURL\tOUTPUT")
	for _, p := range s.Root().AllPages() {
		u, err := s.URL(p.Endpoint())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Endpoint(), u, p.OutputPath())
	}
	return tw.Flush()
}
