// Package condition provides the two-way branching node executor.
package condition

import (
	"context"
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// Output handles condition edges attach to.
const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

// ConditionNode evaluates a list of field comparisons and routes execution
// down the true or false handle; the other handle's subtree is skipped.
type ConditionNode struct {
	id          string
	conditions  []models.Condition
	conjunction models.Conjunction
}

// NewConditionNode creates a new condition node.
func NewConditionNode(node *models.WorkflowNode) (*ConditionNode, error) {
	raw, ok := node.Data["conditions"]
	if !ok {
		return nil, fmt.Errorf("condition node %s missing 'conditions'", node.ID)
	}

	conditions, err := models.ParseConditions(raw)
	if err != nil {
		return nil, fmt.Errorf("condition node %s: %w", node.ID, err)
	}

	return &ConditionNode{
		id:          node.ID,
		conditions:  conditions,
		conjunction: models.ParseConjunction(node.Data["conjunction"]),
	}, nil
}

// Execute evaluates the condition set against the execution context.
func (n *ConditionNode) Execute(_ context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	result := models.EvaluateConditions(n.conditions, n.conjunction, execution.Context.Data())

	skipped := HandleFalse
	if !result {
		skipped = HandleTrue
	}

	return &protocol.NodeResult{
		Outcome:         protocol.OutcomeSuccess,
		Output:          map[string]any{"result": result},
		ConditionResult: &result,
		SkippedHandles:  []string{skipped},
	}, nil
}
