// Package models defines the core domain models for workflow execution and domain warming.
package models

import "time"

// NodeType identifies the kind of a workflow node. The set is closed:
// the engine resolves each type to a registered executor at startup.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeBranch    NodeType = "branch"
	NodeTypeWait      NodeType = "wait"
	NodeTypeAgent     NodeType = "agent"
)

// WorkflowNode represents a node instance in a workflow definition.
type WorkflowNode struct {
	ID    string         `json:"id"    validate:"required"`
	Type  NodeType       `json:"type"  validate:"required"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}

// WorkflowEdge connects two nodes. SourceHandle names the output handle
// on the source node the edge is attached to ("true"/"false" on condition
// nodes, a branch id on branch nodes, empty for the single default handle).
type WorkflowEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// WorkflowDefinition is the immutable graph one execution runs against.
// New versions are created as new definitions rather than edited in place.
type WorkflowDefinition struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*WorkflowEdge `json:"edges"`

	// ExecutionOrder is a cached topological order. It must match the
	// graph or be recomputed at run start; it is never the source of truth.
	ExecutionOrder []string `json:"execution_order,omitempty"`

	Variables map[string]any `json:"variables,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (w *WorkflowDefinition) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EdgesFrom returns all edges whose source is the given node.
func (w *WorkflowDefinition) EdgesFrom(nodeID string) []*WorkflowEdge {
	var edges []*WorkflowEdge

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}
