package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Output.Directory) == "" {
		return serrors.ConfigError("output directory is required").
			WithContext("field", "output.directory").
			Build()
	}
	if filepath.Clean(cfg.Output.Directory) == filepath.Clean(cfg.Pages.Folder) {
		return serrors.ConfigError("output directory must differ from the pages folder").
			WithContext("field", "output.directory").
			Build()
	}
	if strings.HasPrefix(cfg.URLs.Prefix, "/") {
		return serrors.ConfigError("url prefix must not start with '/'").
			WithContext("field", "urls.prefix").
			Build()
	}
	if cfg.URLs.Prefix != "" && !strings.HasSuffix(cfg.URLs.Prefix, "/") {
		return serrors.ConfigError("url prefix must end with '/'").
			WithContext("field", "urls.prefix").
			Build()
	}
	if !strings.HasPrefix(cfg.URLs.ApplicationRoot, "/") {
		return serrors.ConfigError("application root must start with '/'").
			WithContext("field", "urls.application_root").
			Build()
	}
	switch cfg.URLs.Scheme {
	case "http", "https":
	default:
		return serrors.ConfigError("unsupported url scheme").
			WithContext("field", "urls.scheme").
			WithContext("value", cfg.URLs.Scheme).
			Build()
	}
	if cfg.Render.Schedule != "" {
		if err := validateSchedule(cfg.Render.Schedule); err != nil {
			return serrors.WrapError(err, serrors.CategoryConfig, "invalid render schedule").
				Fatal().
				WithContext("field", "render.schedule").
				Build()
		}
	}
	return nil
}

// IntervalPrefix marks a schedule given as a fixed interval, as in "@every 10m".
const IntervalPrefix = "@every "

// ScheduleInterval reports whether expr is an interval schedule and returns
// its duration. Anything else is left to the cron parser.
func ScheduleInterval(expr string) (time.Duration, bool, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(expr), IntervalPrefix)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(rest))
	if err != nil {
		return 0, true, err
	}
	if d <= 0 {
		return 0, true, serrors.ValidationError("interval must be > 0").
			WithContext("schedule", expr).
			Build()
	}
	return d, true, nil
}

func validateSchedule(expr string) error {
	if _, ok, err := ScheduleInterval(expr); ok {
		return err
	}
	return validateCron(expr)
}

// validateCron asks gocron to build the job definition without scheduling it.
func validateCron(expr string) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	defer func() { _ = s.Shutdown() }()
	_, err = s.NewJob(gocron.CronJob(expr, false), gocron.NewTask(func() {}))
	return err
}
