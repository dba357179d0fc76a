package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/spark"
)

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "warn")
	require.Equal(t, slog.LevelWarn, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true))

	t.Setenv(LogLevelEnv, "")
	require.Equal(t, slog.LevelInfo, parseLogLevel(false))
}

func TestCLI_Parses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	_, err = parser.Parse([]string{"-c", "site.yaml", "render", "-o", "out", "--continue-on-error"})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(cli.Config))
	require.True(t, cli.Render.ContinueOnError)
	require.Equal(t, "out", filepath.Base(cli.Render.Output))

	_, err = parser.Parse([]string{"serve", "--addr", ":9000"})
	require.NoError(t, err)
	require.Equal(t, ":9000", cli.Serve.Addr)
}

func TestInitRenderRoutes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "spark.yaml")

	require.NoError(t, RunInit(cfgPath, false))
	require.FileExists(t, filepath.Join(dir, "pages", "pages.yaml"))

	err := RunInit(cfgPath, false)
	require.True(t, serrors.HasCategory(err, serrors.CategoryValidation))

	a, s, err := LoadApp(cfgPath, slog.Default())
	require.NoError(t, err)

	out := filepath.Join(dir, "public")
	require.NoError(t, a.RunCommand(context.Background(), spark.CommandRender, []string{out}))

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "<h1>My Site</h1>")
	// config.Init sets server_name, so spark_url yields absolute URLs.
	require.Contains(t, string(index), `href="http://localhost:5000/static/about.html"`)

	about, err := os.ReadFile(filepath.Join(out, "about.html"))
	require.NoError(t, err)
	require.Contains(t, string(about), `href="http://localhost:5000/static/"`)

	var buf bytes.Buffer
	require.NoError(t, PrintRoutes(&buf, a, s))
	require.Contains(t, buf.String(), spark.RouteName)
	require.Contains(t, buf.String(), "about.html")
}
