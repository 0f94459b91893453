// Package persistence provides the data storage abstraction layer for
// workflow executions and sending domains.
package persistence

import (
	"context"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

// Persistence is the root handle a process holds onto. Implementations
// back it with the file system (dev, tests) or PostgreSQL.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Domains() DomainRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores executions and their append-only step log.
type ExecutionRepository interface {
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error

	// RecordStep commits a step record and the execution's new state in
	// one transaction, so status and audit log never diverge.
	RecordStep(ctx context.Context, execution *models.WorkflowExecution, step *models.WorkflowExecutionStep) error

	StepsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionStep, error)

	// DueExecutions returns paused executions whose resume_at has passed,
	// for the external scheduler tick.
	DueExecutions(ctx context.Context, now time.Time) ([]*models.WorkflowExecution, error)
}

// DomainRepository stores sending domains, warming state and health rollups.
type DomainRepository interface {
	DomainByID(ctx context.Context, id string) (*models.SendingDomain, error)
	SaveDomain(ctx context.Context, domain *models.SendingDomain) error
	Domains(ctx context.Context) ([]*models.SendingDomain, error)
	DeleteDomain(ctx context.Context, id string) error

	// WarmingDomains returns domains with warming in progress, for the
	// daily advance tick.
	WarmingDomains(ctx context.Context) ([]*models.SendingDomain, error)

	ScheduleByID(ctx context.Context, id string) (*models.WarmingSchedule, error)
	SaveSchedule(ctx context.Context, schedule *models.WarmingSchedule) error
	Schedules(ctx context.Context) ([]*models.WarmingSchedule, error)

	// ProgressForDay is the point lookup the warming engine uses for the
	// current day's row.
	ProgressForDay(ctx context.Context, domainID string, day int) (*models.WarmingProgress, error)
	SaveProgress(ctx context.Context, progress *models.WarmingProgress) error
	ProgressByDomain(ctx context.Context, domainID string) ([]*models.WarmingProgress, error)

	// AdvanceWarming commits the finalized previous day, the updated
	// domain and the next day's fresh progress row atomically. A partial
	// write here is a correctness bug, not a degraded mode.
	AdvanceWarming(ctx context.Context, domain *models.SendingDomain, finalized, next *models.WarmingProgress) error

	// Health rollups are upserted idempotently by natural key.
	UpsertDomainHealth(ctx context.Context, health *models.DomainHealth) error
	UpsertISPMetrics(ctx context.Context, metrics *models.ISPMetrics) error
	HealthForDay(ctx context.Context, domainID string, date time.Time) (*models.DomainHealth, error)

	// Telemetry aggregates produced by the external event-log pipeline.
	DailyStats(ctx context.Context, domainID string, date time.Time) (models.DailyStats, error)
	DailyStatsByISP(ctx context.Context, domainID string, date time.Time) (map[string]models.DailyStats, error)
	SaveDailyStats(ctx context.Context, domainID string, date time.Time, isp string, stats models.DailyStats) error
}
