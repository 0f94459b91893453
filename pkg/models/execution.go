package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final. Terminal executions
// are immutable: re-running them is a no-op.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ExecutionContext carries the accumulated state of one execution across
// suspend/resume boundaries. Fixed fields are typed; Variables remains a
// bag for genuinely user-defined values.
type ExecutionContext struct {
	RecordData    map[string]any            `json:"record_data,omitempty"`
	TriggerData   map[string]any            `json:"trigger_data,omitempty"`
	Variables     map[string]any            `json:"variables,omitempty"`
	NodeOutputs   map[string]map[string]any `json:"node_outputs,omitempty"`
	ExecutedNodes []string                  `json:"executed_nodes,omitempty"`
	SkipNodes     []string                  `json:"skip_nodes,omitempty"`
}

// NewExecutionContext returns an empty, fully initialized context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		RecordData:  make(map[string]any),
		TriggerData: make(map[string]any),
		Variables:   make(map[string]any),
		NodeOutputs: make(map[string]map[string]any),
	}
}

// ShouldSkip reports whether the node was ruled out by a condition or
// branch decision earlier in this execution.
func (c *ExecutionContext) ShouldSkip(nodeID string) bool {
	for _, id := range c.SkipNodes {
		if id == nodeID {
			return true
		}
	}

	return false
}

// MarkSkipped adds node ids to the skip set, ignoring duplicates.
func (c *ExecutionContext) MarkSkipped(nodeIDs ...string) {
	for _, id := range nodeIDs {
		if !c.ShouldSkip(id) {
			c.SkipNodes = append(c.SkipNodes, id)
		}
	}
}

// MarkExecuted appends a node to the executed-node history.
func (c *ExecutionContext) MarkExecuted(nodeID string) {
	c.ExecutedNodes = append(c.ExecutedNodes, nodeID)
}

// Data flattens the context into the namespaces available to dot-path
// resolution: record.*, trigger.*, variables.* and nodes.*.
func (c *ExecutionContext) Data() map[string]any {
	nodes := make(map[string]any, len(c.NodeOutputs))
	for id, output := range c.NodeOutputs {
		nodes[id] = output
	}

	return map[string]any{
		"record":    c.RecordData,
		"trigger":   c.TriggerData,
		"variables": c.Variables,
		"nodes":     nodes,
	}
}

// WaitEventKind distinguishes the three wait sub-kinds.
type WaitEventKind string

const (
	WaitKindDuration WaitEventKind = "duration"
	WaitKindDatetime WaitEventKind = "datetime"
	WaitKindEvent    WaitEventKind = "event"
)

// WorkflowExecution is one run of a WorkflowDefinition against one record.
type WorkflowExecution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	RecordID   string `json:"record_id"`

	Status        ExecutionStatus `json:"status"`
	CurrentNodeID string          `json:"current_node_id,omitempty"`

	// NextNodeID is the resume pointer: the first node the next Execute
	// call will run. It always points past any node whose step record
	// already exists.
	NextNodeID string `json:"next_node_id,omitempty"`

	Context *ExecutionContext `json:"context"`

	Error       string `json:"error,omitempty"`
	ErrorNodeID string `json:"error_node_id,omitempty"`

	IsDryRun bool `json:"is_dry_run"`

	// Wait descriptors: status=paused implies exactly one of ResumeAt or
	// WaitEventType is set, the latter with a matching WaitTimeoutAt.
	PausedAt      *time.Time    `json:"paused_at,omitempty"`
	ResumeAt      *time.Time    `json:"resume_at,omitempty"`
	WaitEventType string        `json:"wait_event_type,omitempty"`
	WaitTimeoutAt *time.Time    `json:"wait_timeout_at,omitempty"`
	WaitKind      WaitEventKind `json:"wait_kind,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ClearWait resets all wait descriptors, called when a paused execution
// resumes.
func (e *WorkflowExecution) ClearWait() {
	e.PausedAt = nil
	e.ResumeAt = nil
	e.WaitEventType = ""
	e.WaitTimeoutAt = nil
	e.WaitKind = ""
}
