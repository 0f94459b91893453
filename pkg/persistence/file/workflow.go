package file

import (
	"context"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

const kindWorkflows = "workflows"

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	store *Persistence
}

// WorkflowByID loads a definition by id.
func (r *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var workflow models.WorkflowDefinition
	if err := r.store.read(kindWorkflows, id, &workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// SaveWorkflow writes a definition.
func (r *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(kindWorkflows, workflow.ID, workflow)
}

// Workflows lists every stored definition.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	ids, err := r.store.listIDs(kindWorkflows)
	r.store.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// DeleteWorkflow removes a definition.
func (r *WorkflowRepository) DeleteWorkflow(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.remove(kindWorkflows, id, persistence.ErrWorkflowNotFound)
}
