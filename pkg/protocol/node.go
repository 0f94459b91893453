// Package protocol defines the interfaces and contracts for pluggable
// workflow node executors and their external collaborators.
package protocol

import (
	"context"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

// NodeOutcome is the tri-state result of one node execution.
type NodeOutcome string

const (
	OutcomeSuccess NodeOutcome = "success"
	OutcomeFailed  NodeOutcome = "failed"
	OutcomeWaiting NodeOutcome = "waiting"
)

// WaitInfo carries exactly one resumption condition for a waiting node:
// either ResumeAt (duration and datetime waits) or EventType with a
// TimeoutAt (event waits).
type WaitInfo struct {
	Kind        models.WaitEventKind `json:"kind"`
	ResumeAt    *time.Time           `json:"resume_at,omitempty"`
	EventType   string               `json:"event_type,omitempty"`
	EventFilter map[string]any       `json:"event_filter,omitempty"`
	TimeoutAt   *time.Time           `json:"timeout_at,omitempty"`
}

// NodeResult is what an executor hands back to the engine.
type NodeResult struct {
	Outcome NodeOutcome    `json:"outcome"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
	Wait    *WaitInfo      `json:"wait,omitempty"`

	// ConditionResult and SelectedBranch are populated by condition and
	// branch nodes for the step audit record.
	ConditionResult *bool  `json:"condition_result,omitempty"`
	SelectedBranch  string `json:"selected_branch,omitempty"`

	// SkippedHandles names the source handles whose subtrees the engine
	// must add to the skip set (the unchosen side of a condition, every
	// non-selected branch).
	SkippedHandles []string `json:"skipped_handles,omitempty"`
}

// Success builds a successful result with the given output.
func Success(output map[string]any) *NodeResult {
	return &NodeResult{Outcome: OutcomeSuccess, Output: output}
}

// Failed builds a failed result from an error message.
func Failed(message string) *NodeResult {
	return &NodeResult{Outcome: OutcomeFailed, Error: message}
}

// NodeExecutor executes one node type. Implementations are stateless with
// respect to the execution: everything they need arrives via the node's
// parsed configuration and the execution record.
type NodeExecutor interface {
	Execute(ctx context.Context, execution *models.WorkflowExecution) (*NodeResult, error)
}

// NodeFactory creates executor instances from raw node data and provides
// metadata about the node type.
type NodeFactory interface {
	// Create parses the node's data into a configured executor.
	Create(node *models.WorkflowNode) (NodeExecutor, error)

	// ID returns the node type this factory builds ("condition", "wait", ...).
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for this node type's data field.
	Schema() map[string]any
}
