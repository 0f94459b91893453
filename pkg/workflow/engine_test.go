package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/nodes/action"
	"github.com/sendloop/sendloop/pkg/nodes/branch"
	"github.com/sendloop/sendloop/pkg/nodes/condition"
	"github.com/sendloop/sendloop/pkg/nodes/trigger"
	"github.com/sendloop/sendloop/pkg/nodes/wait"
	"github.com/sendloop/sendloop/pkg/persistence/file"
	"github.com/sendloop/sendloop/pkg/registry"
)

type recordingActionExecutor struct {
	calls []string
	fail  map[string]bool
}

func (r *recordingActionExecutor) ExecuteAction(_ context.Context, actionType string, input map[string]any, _ *models.WorkflowExecution) (map[string]any, error) {
	r.calls = append(r.calls, actionType)

	if r.fail[actionType] {
		return nil, fmt.Errorf("simulated failure of %s", actionType)
	}

	return map[string]any{"done": true, "input": input}, nil
}

type testHarness struct {
	engine      *Engine
	persistence *file.Persistence
	actions     *recordingActionExecutor
	clock       *fakeClock
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	actions := &recordingActionExecutor{fail: make(map[string]bool)}
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	reg := registry.NewRegistry(logger)
	reg.Register(trigger.NewTriggerNodeFactory())
	reg.Register(action.NewActionNodeFactory(actions))
	reg.Register(condition.NewConditionNodeFactory())
	reg.Register(branch.NewBranchNodeFactory())
	reg.Register(wait.NewWaitNodeFactory(nil, clock.Now))

	engine := NewEngine(persistence, reg, nil, nil, logger)
	engine.now = clock.Now

	return &testHarness{
		engine:      engine,
		persistence: persistence,
		actions:     actions,
		clock:       clock,
	}
}

func (h *testHarness) saveWorkflow(t *testing.T, workflow *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, h.persistence.Workflows().SaveWorkflow(t.Context(), workflow))
}

func actionNode(id, actionType string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Type: models.NodeTypeAction,
		Data: map[string]any{"action_type": actionType},
	}
}

func edge(source, target, handle string) *models.WorkflowEdge {
	return &models.WorkflowEdge{
		ID:           source + "-" + target,
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	}
}

func TestEngineLinearWorkflowCompletes(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-linear",
		Name: "linear flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{"trigger_type": "record_created"}},
			actionNode("send", "send_email"),
			actionNode("tag", "update_record"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "send", ""),
			edge("send", "tag", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-linear", StartOptions{
		RecordID:    "rec-1",
		TriggerData: map[string]any{"source": "crm"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, execution.NextNodeID)
	assert.NotNil(t, execution.CompletedAt)
	assert.Equal(t, []string{"send_email", "update_record"}, h.actions.calls)

	steps, err := h.persistence.Executions().StepsByExecution(t.Context(), execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "start", steps[0].NodeID)
	assert.Equal(t, "send", steps[1].NodeID)
	assert.Equal(t, "tag", steps[2].NodeID)

	for _, step := range steps {
		assert.Equal(t, models.StepStatusSuccess, step.Status)
	}
}

func TestEngineConditionSkipsFalseSubtree(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-cond",
		Name: "conditional flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "check", Type: models.NodeTypeCondition, Data: map[string]any{
				"conditions": []any{
					map[string]any{"field": "record.score", "operator": "equals", "value": 5},
				},
			}},
			actionNode("on-true", "notify_owner"),
			actionNode("after-true", "escalate"),
			actionNode("on-false", "archive"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "check", ""),
			edge("check", "on-true", condition.HandleTrue),
			edge("on-true", "after-true", ""),
			edge("check", "on-false", condition.HandleFalse),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-cond", StartOptions{
		RecordData: map[string]any{"score": 7},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Contains(t, execution.Context.SkipNodes, "on-true")
	assert.Contains(t, execution.Context.SkipNodes, "after-true")
	assert.NotContains(t, execution.Context.SkipNodes, "on-false")
	assert.Equal(t, []string{"archive"}, h.actions.calls)

	steps, err := h.persistence.Executions().StepsByExecution(t.Context(), execution.ID)
	require.NoError(t, err)

	stepNodes := make([]string, 0, len(steps))
	for _, step := range steps {
		stepNodes = append(stepNodes, step.NodeID)

		if step.NodeID == "check" {
			require.NotNil(t, step.ConditionResult)
			assert.False(t, *step.ConditionResult)
		}
	}

	assert.NotContains(t, stepNodes, "on-true")
	assert.NotContains(t, stepNodes, "after-true")
	assert.Contains(t, stepNodes, "on-false")
}

func TestEngineConditionTruePath(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-cond-true",
		Name: "conditional flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "check", Type: models.NodeTypeCondition, Data: map[string]any{
				"conditions": []any{
					map[string]any{"field": "record.score", "operator": "equals", "value": 5},
				},
			}},
			actionNode("on-true", "notify_owner"),
			actionNode("on-false", "archive"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "check", ""),
			edge("check", "on-true", condition.HandleTrue),
			edge("check", "on-false", condition.HandleFalse),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-cond-true", StartOptions{
		RecordData: map[string]any{"score": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"notify_owner"}, h.actions.calls)
	assert.Contains(t, execution.Context.SkipNodes, "on-false")
}

func TestEngineWaitPausesAndResumes(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-wait",
		Name: "wait flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "pause", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type": "duration",
				"duration":  1,
				"unit":      "hours",
			}},
			actionNode("after", "send_followup"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "pause", ""),
			edge("pause", "after", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-wait", StartOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.Equal(t, models.WaitKindDuration, execution.WaitKind)
	require.NotNil(t, execution.ResumeAt)
	assert.Equal(t, h.clock.current.Add(time.Hour), *execution.ResumeAt)
	assert.Equal(t, "after", execution.NextNodeID, "resume pointer must be past the wait node")
	assert.Empty(t, h.actions.calls, "nothing after the wait may run before resumption")

	// Not due yet.
	resumed, err := h.engine.ResumeDue(t.Context(), h.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, resumed)

	h.clock.Advance(2 * time.Hour)

	resumed, err = h.engine.ResumeDue(t.Context(), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	reloaded, err := h.persistence.Executions().ExecutionByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)
	assert.Nil(t, reloaded.ResumeAt)
	assert.Equal(t, []string{"send_followup"}, h.actions.calls)

	steps, err := h.persistence.Executions().StepsByExecution(t.Context(), execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	waitSteps := 0
	for _, step := range steps {
		if step.NodeID == "pause" {
			waitSteps++

			assert.Equal(t, models.StepStatusWaiting, step.Status)
		}
	}

	assert.Equal(t, 1, waitSteps, "the wait node must never be re-executed on resume")
}

func TestEngineResumeSurvivesEditedDefinition(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-edited",
		Name: "wait flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "pause", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type": "duration",
				"duration":  1,
				"unit":      "hours",
			}},
			actionNode("after", "send_followup"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "pause", ""),
			edge("pause", "after", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-edited", StartOptions{})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)
	require.Equal(t, "after", execution.NextNodeID)

	// Edit the definition out from under the parked execution, removing
	// the node its resume pointer names.
	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-edited",
		Name: "wait flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "pause", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type": "duration",
				"duration":  1,
				"unit":      "hours",
			}},
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "pause", ""),
		},
	})

	h.clock.Advance(2 * time.Hour)

	resumed, err := h.engine.ResumeDue(t.Context(), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	reloaded, err := h.persistence.Executions().ExecutionByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, reloaded.Status,
		"an orphaned resume pointer must not destroy the execution")
	assert.Empty(t, reloaded.Error)
	require.NotNil(t, reloaded.ResumeAt, "the wait must stay intact so the sweep retries")
	assert.Empty(t, h.actions.calls)

	// Restoring the node makes the execution runnable again.
	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-edited",
		Name: "wait flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "pause", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type": "duration",
				"duration":  1,
				"unit":      "hours",
			}},
			actionNode("after", "send_followup"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "pause", ""),
			edge("pause", "after", ""),
		},
	})

	resumed, err = h.engine.ResumeDue(t.Context(), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	reloaded, err = h.persistence.Executions().ExecutionByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)
	assert.Equal(t, []string{"send_followup"}, h.actions.calls)
}

func TestEngineActionFailureFailsExecution(t *testing.T) {
	h := newTestHarness(t)
	h.actions.fail["send_email"] = true

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-fail",
		Name: "failing flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			actionNode("send", "send_email"),
			actionNode("never", "update_record"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "send", ""),
			edge("send", "never", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-fail", StartOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "send", execution.ErrorNodeID)
	assert.Contains(t, execution.Error, "simulated failure")
	assert.NotContains(t, h.actions.calls, "update_record")
}

func TestEngineUnknownNodeTypeFails(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-unknown",
		Name: "bad flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "mystery", Type: "teleport", Data: map[string]any{}},
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "mystery", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-unknown", StartOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "mystery", execution.ErrorNodeID)
	assert.Contains(t, execution.Error, "not registered")
}

func TestEngineTerminalExecutionIsNoOp(t *testing.T) {
	h := newTestHarness(t)

	execution := &models.WorkflowExecution{
		ID:         "exec-done",
		WorkflowID: "wf-any",
		Status:     models.ExecutionStatusCompleted,
		Context:    models.NewExecutionContext(),
	}

	require.NoError(t, h.engine.Execute(t.Context(), execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestEngineCyclicGraphFails(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-cycle",
		Name: "cyclic flow",
		Nodes: []*models.WorkflowNode{
			actionNode("a", "one"),
			actionNode("b", "two"),
		},
		Edges: []*models.WorkflowEdge{
			edge("a", "b", ""),
			edge("b", "a", ""),
		},
	})

	_, err := h.engine.StartExecution(t.Context(), "wf-cycle", StartOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestEngineBranchSelectsFirstMatch(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-branch",
		Name: "branching flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "route", Type: models.NodeTypeBranch, Data: map[string]any{
				"branches": []any{
					map[string]any{
						"id":    "vip",
						"label": "VIP customers",
						"conditions": []any{
							map[string]any{"field": "record.tier", "operator": "equals", "value": "gold"},
						},
					},
					map[string]any{
						"id":    "default",
						"label": "Everyone else",
					},
				},
			}},
			actionNode("vip-path", "white_glove"),
			actionNode("default-path", "standard"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "route", ""),
			edge("route", "vip-path", "vip"),
			edge("route", "default-path", "default"),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-branch", StartOptions{
		RecordData: map[string]any{"tier": "silver"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"standard"}, h.actions.calls)
	assert.Contains(t, execution.Context.SkipNodes, "vip-path")

	steps, err := h.persistence.Executions().StepsByExecution(t.Context(), execution.ID)
	require.NoError(t, err)

	for _, step := range steps {
		if step.NodeID == "route" {
			assert.Equal(t, "default", step.SelectedBranch)
		}
	}
}

func TestEngineDryRunSkipsSideEffects(t *testing.T) {
	h := newTestHarness(t)

	h.saveWorkflow(t, &models.WorkflowDefinition{
		ID:   "wf-dry",
		Name: "dry run flow",
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "pause", Type: models.NodeTypeWait, Data: map[string]any{
				"wait_type": "duration",
				"duration":  1,
				"unit":      "days",
			}},
			actionNode("send", "send_email"),
		},
		Edges: []*models.WorkflowEdge{
			edge("start", "pause", ""),
			edge("pause", "send", ""),
		},
	})

	execution, err := h.engine.StartExecution(t.Context(), "wf-dry", StartOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, h.actions.calls, "dry runs never invoke the action executor")
	assert.True(t, execution.IsDryRun)
}
