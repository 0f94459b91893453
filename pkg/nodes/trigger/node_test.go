package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

func triggerWorkflowNode(data map[string]any) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   "start",
		Type: models.NodeTypeTrigger,
		Data: data,
	}
}

func TestTriggerNodeSnapshotsPayload(t *testing.T) {
	node, err := NewTriggerNode(triggerWorkflowNode(map[string]any{"trigger_type": "record_created"}))
	require.NoError(t, err)

	execCtx := models.NewExecutionContext()
	execCtx.TriggerData = map[string]any{"source": "crm", "list_id": "list-7"}

	execution := &models.WorkflowExecution{
		ID:       "exec-1",
		RecordID: "rec-42",
		Context:  execCtx,
	}

	result, err := node.Execute(t.Context(), execution)
	require.NoError(t, err)

	assert.Equal(t, protocol.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "record_created", result.Output["trigger_type"])
	assert.Equal(t, "rec-42", result.Output["record_id"])
	assert.Equal(t, execCtx.TriggerData, result.Output["trigger_data"])
}

func TestTriggerNodeDefaultsToManual(t *testing.T) {
	node, err := NewTriggerNode(triggerWorkflowNode(map[string]any{}))
	require.NoError(t, err)

	execution := &models.WorkflowExecution{
		ID:      "exec-1",
		Context: models.NewExecutionContext(),
	}

	result, err := node.Execute(t.Context(), execution)
	require.NoError(t, err)

	assert.Equal(t, "manual", result.Output["trigger_type"])
	assert.NotContains(t, result.Output, "trigger_data", "an empty payload is not snapshotted")
}
