package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spark/internal/app"
	"git.home.luguber.info/inful/spark/internal/config"
	"git.home.luguber.info/inful/spark/internal/spark"
)

// LogLevelEnv overrides the log level unless --verbose is given.
const LogLevelEnv = "SPARK_LOG_LEVEL"

// Global is passed to every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"spark.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Render RenderCmd `cmd:"" help:"Render the page tree to the output directory"`
	Serve  ServeCmd  `cmd:"" help:"Serve the application with the page tree rendered live"`
	Routes RoutesCmd `cmd:"" help:"List application routes and page URLs"`
	Init   InitCmd   `cmd:"" help:"Initialize a configuration file and an example page tree"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours --verbose first, then SPARK_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logger(g *Global) *slog.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// LoadApp loads the configuration and builds the application with spark
// attached and the page tree loaded.
func LoadApp(configPath string, log *slog.Logger, opts ...spark.Option) (*app.App, *spark.Spark, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return NewApp(cfg, log, opts...)
}

// NewApp builds the application for cfg with spark attached and the page
// tree loaded.
func NewApp(cfg *config.Config, log *slog.Logger, opts ...spark.Option) (*app.App, *spark.Spark, error) {
	a := app.New(cfg, app.WithLogger(log))
	s, err := spark.Init(a, opts...)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.Load(); err != nil {
		return nil, nil, err
	}
	return a, s, nil
}
