package registry

import (
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateDefinition checks every node of a definition against its
// factory's config schema. Called when a definition is loaded, before
// any execution starts.
func (r *Registry) ValidateDefinition(definition *models.WorkflowDefinition) error {
	for _, node := range definition.Nodes {
		factory, ok := r.factories[string(node.Type)]
		if !ok {
			return fmt.Errorf("node %s: type %q not registered", node.ID, node.Type)
		}

		schema := factory.Schema()
		if schema == nil {
			continue
		}

		data := node.Data
		if data == nil {
			data = map[string]any{}
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(schema),
			gojsonschema.NewGoLoader(data),
		)
		if err != nil {
			return fmt.Errorf("node %s: schema validation error: %w", node.ID, err)
		}

		if !result.Valid() {
			for _, issue := range result.Errors() {
				r.logger.Warn("Node config rejected",
					"node_id", node.ID,
					"node_type", node.Type,
					"issue", issue.String())
			}

			return fmt.Errorf("node %s: invalid %s config: %s", node.ID, node.Type, result.Errors()[0].String())
		}
	}

	return nil
}
