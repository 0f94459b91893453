// Package action provides the action node factory for registry integration.
package action

import (
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// ActionNodeFactory creates ActionNode instances bound to an ActionExecutor.
type ActionNodeFactory struct {
	executor protocol.ActionExecutor
}

// NewActionNodeFactory creates a new factory instance. The executor is a
// required capability, injected once at startup.
func NewActionNodeFactory(executor protocol.ActionExecutor) protocol.NodeFactory {
	return &ActionNodeFactory{executor: executor}
}

// Create creates a new ActionNode instance.
func (f *ActionNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewActionNode(node, f.executor)
}

// ID returns the factory ID.
func (f *ActionNodeFactory) ID() string {
	return string(models.NodeTypeAction)
}

// Name returns the factory name.
func (f *ActionNodeFactory) Name() string {
	return "Action"
}

// Description returns the factory description.
func (f *ActionNodeFactory) Description() string {
	return "Performs a side-effecting action (send email, update record, create task) through the registered action handler."
}

// Schema returns the JSON schema for action node data.
func (f *ActionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action_type": map[string]any{
				"type":        "string",
				"description": "Handler to invoke (send_email, update_record, create_task, ...)",
			},
			"input": map[string]any{
				"type":        "object",
				"description": "Handler input. String values may reference record.*, trigger.*, variables.* or nodes.*",
			},
		},
		"required": []any{"action_type"},
	}
}
