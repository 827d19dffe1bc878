// Package schedule runs periodic regeneration jobs.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docstream/internal/logfields"
)

// Task is one scheduled unit of work. The context is canceled when the
// scheduler stops.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{scheduler: s, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Every registers task to run at each interval. A run still in progress
// when the next tick arrives is skipped, so regenerations never overlap.
// It returns the job id.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("schedule: interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.execute, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.scheduler.Jobs()) }

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", logfields.Count(s.Jobs()))
	s.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

func (s *Scheduler) execute(name string, task Task) {
	start := time.Now()
	s.logger.Info("Executing scheduled job", logfields.Job(name))
	if err := task(s.ctx); err != nil {
		s.logger.Error("Scheduled job failed", logfields.Job(name), logfields.Since(start), logfields.Error(err))
		return
	}
	s.logger.Debug("Scheduled job finished", logfields.Job(name), logfields.Since(start))
}
