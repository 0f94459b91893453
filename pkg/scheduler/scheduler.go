// Package scheduler drives the time-based side of the system: resuming
// waited executions, advancing warming ramps once a day, and the nightly
// reputation rollup. One scheduler instance runs per warmer process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sendloop/sendloop/pkg/reputation"
	"github.com/sendloop/sendloop/pkg/warming"
	"github.com/sendloop/sendloop/pkg/workflow"
)

// Config holds the cron expressions for each recurring job. Zero values
// fall back to the defaults below.
type Config struct {
	// ResumeSpec polls for paused executions whose wait became due.
	ResumeSpec string
	// WarmingSpec advances every in-progress warming ramp by one day.
	WarmingSpec string
	// HealthSpec scores the previous day's telemetry for every domain,
	// then runs the auto-pause sweep over the fresh scores.
	HealthSpec string
}

const (
	defaultResumeSpec  = "@every 30s"
	defaultWarmingSpec = "5 0 * * *"
	defaultHealthSpec  = "30 0 * * *"
)

func (c Config) withDefaults() Config {
	if c.ResumeSpec == "" {
		c.ResumeSpec = defaultResumeSpec
	}

	if c.WarmingSpec == "" {
		c.WarmingSpec = defaultWarmingSpec
	}

	if c.HealthSpec == "" {
		c.HealthSpec = defaultHealthSpec
	}

	return c
}

type Scheduler struct {
	workflows  *workflow.Engine
	warming    *warming.Engine
	reputation *reputation.Scorer
	config     Config
	cron       *cron.Cron
	schedules  []*Schedule
	logger     *slog.Logger
	now        func() time.Time
}

func NewScheduler(
	workflows *workflow.Engine,
	warmingEngine *warming.Engine,
	scorer *reputation.Scorer,
	config Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		workflows:  workflows,
		warming:    warmingEngine,
		reputation: scorer,
		config:     config.withDefaults(),
		logger:     logger.With("module", "scheduler"),
		now:        time.Now,
	}
}

// Start registers the cron jobs and begins running them. Jobs skip
// themselves while a previous run is still in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"resume_due", s.config.ResumeSpec, s.runResumeDue},
		{"warming_advance", s.config.WarmingSpec, s.runWarmingAdvance},
		{"health_rollup", s.config.HealthSpec, s.runHealthRollup},
	}

	for _, job := range jobs {
		schedule, err := NewSchedule(job.name, job.spec, s.now())
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}

		run := job.run

		if _, err := s.cron.AddFunc(job.spec, func() {
			run(ctx)
			schedule.MarkRun(s.now())
		}); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}

		s.schedules = append(s.schedules, schedule)
		s.logger.InfoContext(ctx, "Scheduled job",
			"job", job.name, "spec", job.spec, "next_due_at", schedule.NextDueAt)
	}

	s.cron.Start()

	return nil
}

// Jobs returns a snapshot of every registered schedule, for status
// endpoints and logging.
func (s *Scheduler) Jobs() []Schedule {
	jobs := make([]Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		jobs = append(jobs, schedule.Snapshot())
	}

	return jobs
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Gave up waiting for running jobs")
	}
}

func (s *Scheduler) runResumeDue(ctx context.Context) {
	resumed, err := s.workflows.ResumeDue(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Resume sweep failed", "error", err)

		return
	}

	if resumed > 0 {
		s.logger.InfoContext(ctx, "Resumed due executions", "count", resumed)
	}
}

func (s *Scheduler) runWarmingAdvance(ctx context.Context) {
	advanced, err := s.warming.AdvanceAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Warming advance failed", "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Advanced warming ramps", "count", advanced)
}

func (s *Scheduler) runHealthRollup(ctx context.Context) {
	// Score yesterday: the rollup runs shortly after midnight, once the
	// day being scored has fully closed.
	date := s.now().UTC().AddDate(0, 0, -1)

	scored, err := s.reputation.CalculateAll(ctx, date)
	if err != nil {
		s.logger.ErrorContext(ctx, "Health rollup failed", "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Scored domains", "count", scored, "date", date.Format("2006-01-02"))

	paused, err := s.reputation.AutoPauseSweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto-pause sweep failed", "error", err)

		return
	}

	if len(paused) > 0 {
		s.logger.WarnContext(ctx, "Auto-paused critical domains", "domains", paused)
	}
}
