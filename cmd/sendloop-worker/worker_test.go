package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/nodes/action"
	"github.com/sendloop/sendloop/pkg/nodes/trigger"
	"github.com/sendloop/sendloop/pkg/nodes/wait"
	"github.com/sendloop/sendloop/pkg/persistence/file"
	"github.com/sendloop/sendloop/pkg/registry"
	"github.com/sendloop/sendloop/pkg/subscriptions"
	"github.com/sendloop/sendloop/pkg/workflow"
)

type noopActionExecutor struct{}

func (noopActionExecutor) ExecuteAction(_ context.Context, actionType string, _ map[string]any, _ *models.WorkflowExecution) (map[string]any, error) {
	return map[string]any{"action": actionType}, nil
}

type workerHarness struct {
	worker      *Worker
	engine      *workflow.Engine
	store       subscriptions.Store
	persistence *file.Persistence
}

func newWorkerHarness(t *testing.T) *workerHarness {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	store := subscriptions.NewMemoryStore()

	reg := registry.NewRegistry(logger)
	reg.Register(trigger.NewTriggerNodeFactory())
	reg.Register(action.NewActionNodeFactory(noopActionExecutor{}))
	reg.Register(wait.NewWaitNodeFactory(store, nil))

	engine := workflow.NewEngine(persistence, reg, nil, nil, logger)

	return &workerHarness{
		worker:      NewWorker("worker-test", engine, store, nil, logger),
		engine:      engine,
		store:       store,
		persistence: persistence,
	}
}

func (h *workerHarness) saveEventWaitWorkflow(t *testing.T, filter map[string]any) {
	t.Helper()

	err := h.persistence.Workflows().SaveWorkflow(t.Context(), &models.WorkflowDefinition{
		ID:   "wf-wait",
		Name: "wait for queued email",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "hold", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type":  "event",
				"event_type": string(events.EmailQueuedEvent),
				"filter":     filter,
			}},
			{ID: "follow-up", Type: models.NodeTypeAction, Data: map[string]any{
				"action_type": "update_record",
			}},
		},
		Edges: []*models.WorkflowEdge{
			{ID: "e1", Source: "start", Target: "hold"},
			{ID: "e2", Source: "hold", Target: "follow-up"},
		},
	})
	require.NoError(t, err)
}

func TestHandleEventResumesMatchingExecution(t *testing.T) {
	h := newWorkerHarness(t)
	h.saveEventWaitWorkflow(t, map[string]any{"domain": "mail.example.com"})

	execution, err := h.engine.StartExecution(t.Context(), "wf-wait", workflow.StartOptions{RecordID: "rec-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	event := &events.EmailQueued{
		BaseEvent: events.NewBaseEvent(events.EmailQueuedEvent),
		Domain:    "mail.example.com",
		To:        "lead@example.com",
	}

	require.NoError(t, h.worker.handleEvent(t.Context(), events.EmailQueuedEvent, event))

	resumed, err := h.persistence.Executions().ExecutionByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	// The consumed subscription must be gone.
	matched, err := h.store.Match(t.Context(), string(events.EmailQueuedEvent), map[string]any{"domain": "mail.example.com"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestHandleEventIgnoresNonMatchingFilter(t *testing.T) {
	h := newWorkerHarness(t)
	h.saveEventWaitWorkflow(t, map[string]any{"domain": "mail.example.com"})

	execution, err := h.engine.StartExecution(t.Context(), "wf-wait", workflow.StartOptions{RecordID: "rec-1"})
	require.NoError(t, err)

	event := &events.EmailQueued{
		BaseEvent: events.NewBaseEvent(events.EmailQueuedEvent),
		Domain:    "other.example.com",
	}

	require.NoError(t, h.worker.handleEvent(t.Context(), events.EmailQueuedEvent, event))

	still, err := h.persistence.Executions().ExecutionByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, still.Status)

	// The subscription stays live for the event that does match.
	matched, err := h.store.Match(t.Context(), string(events.EmailQueuedEvent), map[string]any{"domain": "mail.example.com"})
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestHandleEventWithNoSubscriptions(t *testing.T) {
	h := newWorkerHarness(t)

	event := &events.EmailQueued{
		BaseEvent: events.NewBaseEvent(events.EmailQueuedEvent),
		Domain:    "mail.example.com",
	}

	assert.NoError(t, h.worker.handleEvent(t.Context(), events.EmailQueuedEvent, event))
}
