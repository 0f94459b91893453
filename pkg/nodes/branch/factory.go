// Package branch provides the branch node factory for registry integration.
package branch

import (
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// BranchNodeFactory creates BranchNode instances.
type BranchNodeFactory struct{}

// NewBranchNodeFactory creates a new factory instance.
func NewBranchNodeFactory() protocol.NodeFactory {
	return &BranchNodeFactory{}
}

// Create creates a new BranchNode instance.
func (f *BranchNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewBranchNode(node)
}

// ID returns the factory ID.
func (f *BranchNodeFactory) ID() string {
	return string(models.NodeTypeBranch)
}

// Name returns the factory name.
func (f *BranchNodeFactory) Name() string {
	return "Branch"
}

// Description returns the factory description.
func (f *BranchNodeFactory) Description() string {
	return "Routes execution down the first branch whose conditions match; all other branch subtrees are skipped."
}

// Schema returns the JSON schema for branch node data.
func (f *BranchNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"branches": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":          map[string]any{"type": "string"},
						"label":       map[string]any{"type": "string"},
						"conditions":  map[string]any{"type": "array"},
						"conjunction": map[string]any{"type": "string", "enum": []any{"and", "or"}},
					},
					"required": []any{"id"},
				},
				"minItems": 1,
			},
		},
		"required": []any{"branches"},
	}
}
