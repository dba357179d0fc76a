package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/spark/internal/config"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// Scheduler wraps a gocron scheduler for periodic re-renders.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron runs task on a five-field cron expression and returns the
// job id. Overlapping runs are skipped.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", serrors.WrapError(err, serrors.CategoryConfig, "invalid schedule").
			WithContext("job", name).
			WithContext("schedule", expr).
			Build()
	}
	return job.ID().String(), nil
}

// ScheduleEvery runs task at a fixed interval and returns the job id.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", serrors.ValidationError("interval must be > 0").
			WithContext("job", name).
			Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job: %w", err)
	}
	return job.ID().String(), nil
}

// ScheduleRender re-renders through render on expr, logging failures. expr
// is a cron expression or an "@every <duration>" interval.
func (s *Scheduler) ScheduleRender(ctx context.Context, expr string, render func(context.Context) error) (string, error) {
	task := func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("Executing scheduled render")
		if err := render(ctx); err != nil {
			s.logger.Error("Scheduled render failed", "error", err)
		}
	}

	interval, ok, err := config.ScheduleInterval(expr)
	if err != nil {
		return "", serrors.WrapError(err, serrors.CategoryConfig, "invalid schedule").
			WithContext("job", "render").
			WithContext("schedule", expr).
			Build()
	}
	if ok {
		return s.ScheduleEvery("render", interval, task)
	}
	return s.ScheduleCron("render", expr, task)
}
