package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{
		"workflow_execution_steps", "workflow_executions", "workflows",
		"daily_stats", "isp_metrics", "domain_health", "warming_progress",
		"sending_domains", "warming_schedules", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("sendloop_test"),
			postgres.WithUsername("sendloop"),
			postgres.WithPassword("sendloop"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testDomain(id string) *models.SendingDomain {
	return &models.SendingDomain{
		ID:            id,
		Domain:        "mail.example.com",
		Status:        models.DomainStatusWarming,
		WarmingStatus: models.WarmingInProgress,
		WarmingDay:    1,
		DailyLimit:    50,
		HealthScore:   100,
		HealthStatus:  models.HealthExcellent,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	// Verify tables were created
	var exists bool

	for _, table := range []string{"workflows", "workflow_executions", "sending_domains", "warming_progress"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table+" table should exist")
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndRetrieveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        "Welcome sequence",
		Description: "Sends a welcome email after signup",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{"trigger_type": "record_created"}},
			{ID: "send", Type: models.NodeTypeAction, Label: "Send welcome", Data: map[string]any{"action_type": "send_email"}},
		},
		Edges: []*models.WorkflowEdge{
			{ID: "start-send", Source: "start", Target: "send"},
		},
		ExecutionOrder: []string{"start", "send"},
		Variables:      map[string]any{"sender": "hello@example.com"},
	}

	err := p.Workflows().SaveWorkflow(ctx, workflow)
	require.NoError(t, err)
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	retrieved, err := p.Workflows().WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, retrieved.ID)
	assert.Equal(t, workflow.Name, retrieved.Name)
	assert.Equal(t, workflow.Description, retrieved.Description)
	require.Len(t, retrieved.Nodes, 2)
	assert.Equal(t, "record_created", retrieved.Nodes[0].Data["trigger_type"])
	require.Len(t, retrieved.Edges, 1)
	assert.Equal(t, "send", retrieved.Edges[0].Target)
	assert.Equal(t, []string{"start", "send"}, retrieved.ExecutionOrder)
	assert.Equal(t, "hello@example.com", retrieved.Variables["sender"])

	_, err = p.Workflows().WorkflowByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestNewPersistence_UpdateAndDeleteWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.WorkflowDefinition{
		ID:   uuid.New().String(),
		Name: "Re-engagement",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
		},
		Edges: []*models.WorkflowEdge{},
	}

	err := p.Workflows().SaveWorkflow(ctx, workflow)
	require.NoError(t, err)

	initialUpdatedAt := workflow.UpdatedAt

	// Wait a moment to ensure a different timestamp
	time.Sleep(10 * time.Millisecond)

	workflow.Name = "Re-engagement v2"
	workflow.Description = "Now with a wait step"

	err = p.Workflows().SaveWorkflow(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := p.Workflows().WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Re-engagement v2", retrieved.Name)
	assert.Equal(t, "Now with a wait step", retrieved.Description)
	assert.True(t, retrieved.UpdatedAt.After(initialUpdatedAt))

	all, err := p.Workflows().Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = p.Workflows().DeleteWorkflow(ctx, workflow.ID)
	require.NoError(t, err)

	_, err = p.Workflows().WorkflowByID(ctx, workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	err = p.Workflows().DeleteWorkflow(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestNewPersistence_RecordStepKeepsLogAndStateTogether(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	execution := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Status:     models.ExecutionStatusRunning,
		Context:    models.NewExecutionContext(),
	}

	err := p.Executions().SaveExecution(ctx, execution)
	require.NoError(t, err)

	for i, nodeID := range []string{"start", "check", "send"} {
		execution.CurrentNodeID = nodeID

		step := &models.WorkflowExecutionStep{
			ExecutionID: execution.ID,
			NodeID:      nodeID,
			NodeType:    models.NodeTypeAction,
			Status:      models.StepStatusSuccess,
			Output:      map[string]any{"index": i},
			StartedAt:   time.Now().UTC(),
			Duration:    25 * time.Millisecond,
		}

		err := p.Executions().RecordStep(ctx, execution, step)
		require.NoError(t, err)
	}

	steps, err := p.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "start", steps[0].NodeID)
	assert.Equal(t, "check", steps[1].NodeID)
	assert.Equal(t, "send", steps[2].NodeID)
	assert.Equal(t, 25*time.Millisecond, steps[0].Duration)

	reloaded, err := p.Executions().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "send", reloaded.CurrentNodeID, "execution state must move with the step log")
}

func TestNewPersistence_RecordStepRollsBackOnConstraintViolation(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	execution := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Status:     models.ExecutionStatusRunning,
		Context:    models.NewExecutionContext(),
	}

	err := p.Executions().SaveExecution(ctx, execution)
	require.NoError(t, err)

	step := &models.WorkflowExecutionStep{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		NodeID:      "start",
		NodeType:    models.NodeTypeTrigger,
		Status:      models.StepStatusSuccess,
		StartedAt:   time.Now().UTC(),
	}

	execution.CurrentNodeID = "start"
	require.NoError(t, p.Executions().RecordStep(ctx, execution, step))

	// A duplicate step id violates the primary key; neither the step nor
	// the execution update may land.
	execution.CurrentNodeID = "send"
	err = p.Executions().RecordStep(ctx, execution, step)
	require.Error(t, err)

	steps, err := p.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	reloaded, err := p.Executions().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "start", reloaded.CurrentNodeID)
}

func TestNewPersistence_DueExecutions(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Status:     models.ExecutionStatusPaused,
		Context:    models.NewExecutionContext(),
		ResumeAt:   &past,
	}
	notYet := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Status:     models.ExecutionStatusPaused,
		Context:    models.NewExecutionContext(),
		ResumeAt:   &future,
	}
	timedOut := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    uuid.New().String(),
		Status:        models.ExecutionStatusPaused,
		Context:       models.NewExecutionContext(),
		WaitEventType: "email.opened",
		WaitTimeoutAt: &past,
	}
	running := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: uuid.New().String(),
		Status:     models.ExecutionStatusRunning,
		Context:    models.NewExecutionContext(),
		ResumeAt:   &past,
	}

	for _, execution := range []*models.WorkflowExecution{due, notYet, timedOut, running} {
		require.NoError(t, p.Executions().SaveExecution(ctx, execution))
	}

	found, err := p.Executions().DueExecutions(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 2)

	ids := []string{found[0].ID, found[1].ID}
	assert.Contains(t, ids, due.ID)
	assert.Contains(t, ids, timedOut.ID)
}

func TestNewPersistence_DomainLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	domain := testDomain(uuid.New().String())

	err := p.Domains().SaveDomain(ctx, domain)
	require.NoError(t, err)

	retrieved, err := p.Domains().DomainByID(ctx, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", retrieved.Domain)
	assert.Equal(t, models.WarmingInProgress, retrieved.WarmingStatus)

	warming, err := p.Domains().WarmingDomains(ctx)
	require.NoError(t, err)
	require.Len(t, warming, 1)

	domain.WarmingStatus = models.WarmingPaused
	require.NoError(t, p.Domains().SaveDomain(ctx, domain))

	warming, err = p.Domains().WarmingDomains(ctx)
	require.NoError(t, err)
	assert.Empty(t, warming)

	_, err = p.Domains().DomainByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrDomainNotFound)
}

func TestNewPersistence_DeleteDomainCascades(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	domain := testDomain(uuid.New().String())
	require.NoError(t, p.Domains().SaveDomain(ctx, domain))

	require.NoError(t, p.Domains().SaveProgress(ctx, &models.WarmingProgress{
		DomainID:     domain.ID,
		Day:          1,
		TargetVolume: 50,
		Date:         time.Now().UTC(),
	}))

	require.NoError(t, p.Domains().UpsertDomainHealth(ctx, &models.DomainHealth{
		DomainID:     domain.ID,
		Date:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Stats:        models.DailyStats{Sent: 40, Delivered: 39},
		HealthScore:  95,
		HealthStatus: models.HealthExcellent,
	}))

	require.NoError(t, p.Domains().DeleteDomain(ctx, domain.ID))

	_, err := p.Domains().DomainByID(ctx, domain.ID)
	assert.ErrorIs(t, err, persistence.ErrDomainNotFound)

	history, err := p.Domains().ProgressByDomain(ctx, domain.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = p.Domains().HealthForDay(ctx, domain.ID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, persistence.ErrStatsNotFound)

	err = p.Domains().DeleteDomain(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrDomainNotFound)
}

func TestNewPersistence_AdvanceWarmingIsAtomic(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	domain := testDomain(uuid.New().String())
	require.NoError(t, p.Domains().SaveDomain(ctx, domain))

	day1 := &models.WarmingProgress{
		DomainID:     domain.ID,
		Day:          1,
		TargetVolume: 50,
		Date:         time.Now().UTC(),
	}
	require.NoError(t, p.Domains().SaveProgress(ctx, day1))

	day1.Sent = 48
	day1.Delivered = 47
	day1.Completed = true

	domain.WarmingDay = 2
	domain.DailyLimit = 100
	domain.DailySent = 0

	day2 := &models.WarmingProgress{
		DomainID:     domain.ID,
		Day:          2,
		TargetVolume: 100,
		Date:         time.Now().UTC().Add(24 * time.Hour),
	}

	err := p.Domains().AdvanceWarming(ctx, domain, day1, day2)
	require.NoError(t, err)

	reloaded, err := p.Domains().DomainByID(ctx, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.WarmingDay)
	assert.Equal(t, 100, reloaded.DailyLimit)

	finalized, err := p.Domains().ProgressForDay(ctx, domain.ID, 1)
	require.NoError(t, err)
	assert.True(t, finalized.Completed)
	assert.Equal(t, 48, finalized.Sent)

	next, err := p.Domains().ProgressForDay(ctx, domain.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 100, next.TargetVolume)
	assert.False(t, next.Completed)
}

func TestNewPersistence_UpsertDomainHealthIsIdempotent(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	domain := testDomain(uuid.New().String())
	require.NoError(t, p.Domains().SaveDomain(ctx, domain))

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	first := &models.DomainHealth{
		DomainID:     domain.ID,
		Date:         date,
		Stats:        models.DailyStats{Sent: 40, Delivered: 38, Bounced: 2},
		HealthScore:  88,
		HealthStatus: models.HealthGood,
		ScoreFactors: map[string]float64{"bounce": 30.1},
	}
	require.NoError(t, p.Domains().UpsertDomainHealth(ctx, first))

	second := &models.DomainHealth{
		DomainID:     domain.ID,
		Date:         date,
		Stats:        models.DailyStats{Sent: 45, Delivered: 44, Bounced: 1},
		HealthScore:  93,
		HealthStatus: models.HealthExcellent,
	}
	require.NoError(t, p.Domains().UpsertDomainHealth(ctx, second))

	reloaded, err := p.Domains().HealthForDay(ctx, domain.ID, date)
	require.NoError(t, err)
	assert.Equal(t, 93, reloaded.HealthScore)
	assert.Equal(t, models.HealthExcellent, reloaded.HealthStatus)
	assert.Equal(t, 45, reloaded.Stats.Sent)
}

func TestNewPersistence_DailyStatsBuckets(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	domainID := uuid.New().String()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// The empty isp writes the whole-domain bucket.
	require.NoError(t, p.Domains().SaveDailyStats(ctx, domainID, date, "",
		models.DailyStats{Sent: 100, Delivered: 96, Bounced: 4}))
	require.NoError(t, p.Domains().SaveDailyStats(ctx, domainID, date, "gmail",
		models.DailyStats{Sent: 60, Delivered: 59, Bounced: 1}))
	require.NoError(t, p.Domains().SaveDailyStats(ctx, domainID, date, "outlook",
		models.DailyStats{Sent: 40, Delivered: 37, Bounced: 3}))

	total, err := p.Domains().DailyStats(ctx, domainID, date)
	require.NoError(t, err)
	assert.Equal(t, 100, total.Sent)

	byISP, err := p.Domains().DailyStatsByISP(ctx, domainID, date)
	require.NoError(t, err)
	require.Len(t, byISP, 2, "the whole-domain bucket must not appear in the per-provider slice")
	assert.Equal(t, 60, byISP["gmail"].Sent)
	assert.Equal(t, 40, byISP["outlook"].Sent)

	// Re-publishing the same day replaces, not accumulates.
	require.NoError(t, p.Domains().SaveDailyStats(ctx, domainID, date, "gmail",
		models.DailyStats{Sent: 61, Delivered: 60, Bounced: 1}))

	byISP, err = p.Domains().DailyStatsByISP(ctx, domainID, date)
	require.NoError(t, err)
	assert.Equal(t, 61, byISP["gmail"].Sent)

	_, err = p.Domains().DailyStats(ctx, uuid.NewString(), date)
	assert.ErrorIs(t, err, persistence.ErrStatsNotFound)
}

func TestNewPersistence_WarmingSchedules(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	schedule := &models.WarmingSchedule{
		ID:       uuid.New().String(),
		Name:     "Standard 30 day",
		IsSystem: true,
		Steps: []models.WarmingStep{
			{Day: 1, Volume: 50},
			{Day: 7, Volume: 500},
			{Day: 30, Volume: 10000},
		},
		MaxBounceRate:        0.05,
		MaxComplaintRate:     0.001,
		MinDeliveryRate:      0.95,
		AutoPauseOnThreshold: true,
		AutoAdjustVolume:     true,
	}

	err := p.Domains().SaveSchedule(ctx, schedule)
	require.NoError(t, err)

	retrieved, err := p.Domains().ScheduleByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standard 30 day", retrieved.Name)
	require.Len(t, retrieved.Steps, 3)
	assert.Equal(t, 500, retrieved.Steps[1].Volume)
	assert.InDelta(t, 0.05, retrieved.MaxBounceRate, 1e-9)

	all, err := p.Domains().Schedules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = p.Domains().ScheduleByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}
