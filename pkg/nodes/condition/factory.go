// Package condition provides the condition node factory for registry integration.
package condition

import (
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct{}

// NewConditionNodeFactory creates a new factory instance.
func NewConditionNodeFactory() protocol.NodeFactory {
	return &ConditionNodeFactory{}
}

// Create creates a new ConditionNode instance.
func (f *ConditionNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewConditionNode(node)
}

// ID returns the factory ID.
func (f *ConditionNodeFactory) ID() string {
	return string(models.NodeTypeCondition)
}

// Name returns the factory name.
func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *ConditionNodeFactory) Description() string {
	return "Evaluates field comparisons and routes execution to the true or false path. The unchosen subtree is skipped."
}

// Schema returns the JSON schema for condition node data.
func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conditions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field":    map[string]any{"type": "string"},
						"operator": map[string]any{"type": "string"},
						"value":    map[string]any{},
					},
					"required": []any{"field", "operator"},
				},
			},
			"conjunction": map[string]any{
				"type": "string",
				"enum": []any{"and", "or"},
			},
		},
		"required": []any{"conditions"},
	}
}
