// Package trigger provides the trigger node factory for registry integration.
package trigger

import (
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// TriggerNodeFactory creates TriggerNode instances.
type TriggerNodeFactory struct{}

// NewTriggerNodeFactory creates a new factory instance.
func NewTriggerNodeFactory() protocol.NodeFactory {
	return &TriggerNodeFactory{}
}

// Create creates a new TriggerNode instance.
func (f *TriggerNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewTriggerNode(node)
}

// ID returns the factory ID.
func (f *TriggerNodeFactory) ID() string {
	return string(models.NodeTypeTrigger)
}

// Name returns the factory name.
func (f *TriggerNodeFactory) Name() string {
	return "Trigger"
}

// Description returns the factory description.
func (f *TriggerNodeFactory) Description() string {
	return "Entry point of a workflow. Records the trigger payload for downstream nodes."
}

// Schema returns the JSON schema for trigger node data.
func (f *TriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trigger_type": map[string]any{
				"type":        "string",
				"description": "What fired this workflow (manual, record_created, webhook, ...)",
			},
		},
	}
}
