// Package registry resolves node types to their executor factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// Registry maps node type tags to factories. It is populated once at
// startup; the engine never branches on type strings itself.
type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]protocol.NodeFactory),
	}
}

// Register adds a node factory, replacing any previous factory with the
// same ID.
func (r *Registry) Register(factory protocol.NodeFactory) {
	r.factories[factory.ID()] = factory
}

// CreateExecutor builds a configured executor for the given node.
func (r *Registry) CreateExecutor(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	factory, ok := r.factories[string(node.Type)]
	if !ok {
		return nil, fmt.Errorf("node type %q not registered", node.Type)
	}

	return factory.Create(node)
}

// Factory returns the factory for a node type, if registered.
func (r *Registry) Factory(nodeType models.NodeType) (protocol.NodeFactory, bool) {
	factory, ok := r.factories[string(nodeType)]

	return factory, ok
}

// NodeTypes returns the registered node type tags.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}
