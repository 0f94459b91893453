// Package branch provides the multi-way branching node executor.
package branch

import (
	"context"
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// Branch is one candidate path with its own condition set. A branch
// without conditions acts as the default.
type Branch struct {
	ID          string
	Label       string
	Conditions  []models.Condition
	Conjunction models.Conjunction
}

// BranchNode evaluates an ordered branch list; the first branch whose
// conditions all match is selected and every other branch's subtree is
// skipped. Edges attach to branches by using the branch id as the edge's
// source handle.
type BranchNode struct {
	id       string
	branches []Branch
}

// NewBranchNode creates a new branch node.
func NewBranchNode(node *models.WorkflowNode) (*BranchNode, error) {
	raw, ok := node.Data["branches"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("branch node %s missing 'branches'", node.ID)
	}

	branches := make([]Branch, 0, len(raw))

	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("branch %d must be an object", i)
		}

		id, _ := entry["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("branch %d missing 'id'", i)
		}

		branch := Branch{
			ID:          id,
			Conjunction: models.ParseConjunction(entry["conjunction"]),
		}

		branch.Label, _ = entry["label"].(string)

		if rawConditions, ok := entry["conditions"]; ok {
			conditions, err := models.ParseConditions(rawConditions)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", id, err)
			}

			branch.Conditions = conditions
		}

		branches = append(branches, branch)
	}

	return &BranchNode{id: node.ID, branches: branches}, nil
}

// Execute selects the first matching branch. A branch with no conditions
// matches unconditionally, which makes it the default when listed last.
func (n *BranchNode) Execute(_ context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	data := execution.Context.Data()

	selected := ""

	for _, branch := range n.branches {
		if models.EvaluateConditions(branch.Conditions, branch.Conjunction, data) {
			selected = branch.ID

			break
		}
	}

	skipped := make([]string, 0, len(n.branches))

	for _, branch := range n.branches {
		if branch.ID != selected {
			skipped = append(skipped, branch.ID)
		}
	}

	return &protocol.NodeResult{
		Outcome:        protocol.OutcomeSuccess,
		Output:         map[string]any{"selected_branch": selected},
		SelectedBranch: selected,
		SkippedHandles: skipped,
	}, nil
}
