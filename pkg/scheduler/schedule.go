package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a schedule cannot be built from
// its cron expression.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule is the bookkeeping row for one recurring job: its cron
// expression and the precomputed next due time, so callers can answer
// "when does this run next" without re-parsing the expression.
type Schedule struct {
	mu sync.Mutex

	Name           string    `json:"name"`
	CronExpression string    `json:"cron_expression"`
	NextDueAt      time.Time `json:"next_due_at"`
	LastRunAt      time.Time `json:"last_run_at,omitzero"`
	Runs           int       `json:"runs"`
	Active         bool      `json:"active"`

	spec cron.Schedule
}

// NewSchedule builds an active schedule with its first due time
// computed from now. Standard 5-field expressions and descriptors
// like "@every 30s" are accepted.
func NewSchedule(name, cronExpression string, now time.Time) (*Schedule, error) {
	if name == "" || cronExpression == "" {
		return nil, ErrInvalidSchedule
	}

	spec, err := cron.ParseStandard(cronExpression)
	if err != nil {
		return nil, err
	}

	return &Schedule{
		Name:           name,
		CronExpression: cronExpression,
		NextDueAt:      spec.Next(now),
		Active:         true,
		spec:           spec,
	}, nil
}

// IsDue reports whether the job should run at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Active && !s.NextDueAt.After(now)
}

// MarkRun records a completed run and advances the next due time.
func (s *Schedule) MarkRun(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastRunAt = now
	s.Runs++
	s.NextDueAt = s.spec.Next(now)
}

// Snapshot returns a copy safe to serialize.
func (s *Schedule) Snapshot() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Schedule{
		Name:           s.Name,
		CronExpression: s.CronExpression,
		NextDueAt:      s.NextDueAt,
		LastRunAt:      s.LastRunAt,
		Runs:           s.Runs,
		Active:         s.Active,
	}
}
