// Package trigger provides the entry node executor for workflow graph execution.
package trigger

import (
	"context"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// TriggerNode is the entry point of a workflow run. It snapshots the
// trigger payload into its output so downstream nodes can reference it.
type TriggerNode struct {
	id          string
	triggerType string
}

// NewTriggerNode creates a new trigger node.
func NewTriggerNode(node *models.WorkflowNode) (*TriggerNode, error) {
	triggerType, _ := node.Data["trigger_type"].(string)
	if triggerType == "" {
		triggerType = "manual"
	}

	return &TriggerNode{
		id:          node.ID,
		triggerType: triggerType,
	}, nil
}

// Execute always succeeds; the trigger has already fired by the time the
// engine runs.
func (n *TriggerNode) Execute(_ context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	output := map[string]any{
		"trigger_type": n.triggerType,
		"record_id":    execution.RecordID,
	}

	if execution.Context != nil && len(execution.Context.TriggerData) > 0 {
		output["trigger_data"] = execution.Context.TriggerData
	}

	return protocol.Success(output), nil
}
