package models

import "time"

// StepStatus is the outcome recorded for one executed node.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusWaiting StepStatus = "waiting"
)

// WorkflowExecutionStep is an append-only audit record for one node
// execution. Steps are created exactly once per executed node and never
// mutated afterwards.
type WorkflowExecutionStep struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id" validate:"required"`

	NodeID    string   `json:"node_id" validate:"required"`
	NodeType  NodeType `json:"node_type"`
	NodeLabel string   `json:"node_label,omitempty"`

	Status StepStatus `json:"status"`

	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`

	ConditionResult *bool  `json:"condition_result,omitempty"`
	SelectedBranch  string `json:"selected_branch,omitempty"`

	Error string `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
