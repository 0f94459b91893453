// Package agent provides the agent node factory for registry integration.
package agent

import (
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// AgentNodeFactory creates AgentNode instances bound to an AgentRunner.
type AgentNodeFactory struct {
	runner protocol.AgentRunner
}

// NewAgentNodeFactory creates a new factory instance.
func NewAgentNodeFactory(runner protocol.AgentRunner) protocol.NodeFactory {
	return &AgentNodeFactory{runner: runner}
}

// Create creates a new AgentNode instance.
func (f *AgentNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewAgentNode(node, f.runner)
}

// ID returns the factory ID.
func (f *AgentNodeFactory) ID() string {
	return string(models.NodeTypeAgent)
}

// Name returns the factory name.
func (f *AgentNodeFactory) Name() string {
	return "Agent"
}

// Description returns the factory description.
func (f *AgentNodeFactory) Description() string {
	return "Invokes an AI agent and maps selected result keys into the node output."
}

// Schema returns the JSON schema for agent node data.
func (f *AgentNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{"type": "string"},
			"input":    map[string]any{"type": "object"},
			"output_mapping": map[string]any{
				"type":        "object",
				"description": "target_key -> agent result key. Missing keys are omitted, not errors.",
			},
		},
		"required": []any{"agent_id"},
	}
}
