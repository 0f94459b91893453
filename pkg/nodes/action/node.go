// Package action provides the side-effecting action node executor.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
	"github.com/sendloop/sendloop/pkg/template"
)

// ActionNode delegates to the injected ActionExecutor with an input
// resolved from the execution context via dot-path references.
type ActionNode struct {
	id         string
	actionType string
	input      map[string]any
	executor   protocol.ActionExecutor
}

// NewActionNode creates a new action node.
func NewActionNode(node *models.WorkflowNode, executor protocol.ActionExecutor) (*ActionNode, error) {
	actionType, _ := node.Data["action_type"].(string)
	if actionType == "" {
		return nil, errors.New("missing required field 'action_type'")
	}

	input, _ := node.Data["input"].(map[string]any)

	return &ActionNode{
		id:         node.ID,
		actionType: actionType,
		input:      input,
		executor:   executor,
	}, nil
}

// Execute resolves the configured input against the execution context and
// invokes the action handler. Dry runs report the resolved input without
// performing the side effect.
func (n *ActionNode) Execute(ctx context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	resolved := template.ResolveMap(n.input, execution.Context.Data())

	if execution.IsDryRun {
		return protocol.Success(map[string]any{
			"dry_run":     true,
			"action_type": n.actionType,
			"input":       resolved,
		}), nil
	}

	output, err := n.executor.ExecuteAction(ctx, n.actionType, resolved, execution)
	if err != nil {
		return protocol.Failed(fmt.Sprintf("action %s failed: %v", n.actionType, err)), nil
	}

	if output == nil {
		output = map[string]any{}
	}

	output["action_type"] = n.actionType

	return protocol.Success(output), nil
}
