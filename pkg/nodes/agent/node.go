// Package agent provides the AI-agent node executor.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
	"github.com/sendloop/sendloop/pkg/template"
)

// AgentNode delegates to the injected AgentRunner and reshapes its result
// through an optional output mapping.
type AgentNode struct {
	id      string
	agentID string
	input   map[string]any

	// outputMapping copies selected keys of the agent result into the
	// node output under new names. Missing keys are silently omitted.
	outputMapping map[string]string

	runner protocol.AgentRunner
}

// NewAgentNode creates a new agent node.
func NewAgentNode(node *models.WorkflowNode, runner protocol.AgentRunner) (*AgentNode, error) {
	agentID, _ := node.Data["agent_id"].(string)
	if agentID == "" {
		return nil, errors.New("missing required field 'agent_id'")
	}

	input, _ := node.Data["input"].(map[string]any)

	mapping := make(map[string]string)

	if rawMapping, ok := node.Data["output_mapping"].(map[string]any); ok {
		for target, source := range rawMapping {
			if sourceKey, ok := source.(string); ok {
				mapping[target] = sourceKey
			}
		}
	}

	return &AgentNode{
		id:            node.ID,
		agentID:       agentID,
		input:         input,
		outputMapping: mapping,
		runner:        runner,
	}, nil
}

// Execute resolves the input, runs the agent and applies the output mapping.
func (n *AgentNode) Execute(ctx context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	resolved := template.ResolveMap(n.input, execution.Context.Data())

	if execution.IsDryRun {
		return protocol.Success(map[string]any{
			"dry_run":  true,
			"agent_id": n.agentID,
			"input":    resolved,
		}), nil
	}

	result, err := n.runner.RunAgent(ctx, n.agentID, resolved, execution)
	if err != nil {
		return protocol.Failed(fmt.Sprintf("agent %s failed: %v", n.agentID, err)), nil
	}

	output := map[string]any{"agent_id": n.agentID}

	if len(n.outputMapping) == 0 {
		for key, value := range result {
			output[key] = value
		}
	} else {
		for target, source := range n.outputMapping {
			if value, ok := result[source]; ok {
				output[target] = value
			}
		}
	}

	return protocol.Success(output), nil
}
