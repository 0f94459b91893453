package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/graph"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/registry"
)

// Workflow manages workflow definitions: structural validation, execution
// order computation and persistence.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry) *Workflow {
	return &Workflow{persistence: persistence, registry: registry}
}

func (s *Workflow) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return s.persistence.Workflows().Workflows(ctx)
}

func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return s.persistence.Workflows().WorkflowByID(ctx, id)
}

// Create validates a new definition, computes its execution order and
// stores it. The order is cached on the definition so executions do not
// re-sort an unchanged graph.
func (s *Workflow) Create(ctx context.Context, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if err := s.validate(workflow); err != nil {
		return nil, newServiceError("create workflow", err)
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := s.persistence.Workflows().SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces a definition's graph and recomputes the execution
// order. The created timestamp of the stored definition is preserved.
func (s *Workflow) Update(ctx context.Context, id string, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	existing, err := s.persistence.Workflows().WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.CreatedAt = existing.CreatedAt

	if err := s.validate(workflow); err != nil {
		return nil, newServiceError("update workflow", err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Workflows().SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

func (s *Workflow) Delete(ctx context.Context, id string) error {
	return s.persistence.Workflows().DeleteWorkflow(ctx, id)
}

func (s *Workflow) HealthCheck(ctx context.Context) error {
	return s.persistence.HealthCheck(ctx)
}

func (s *Workflow) validate(workflow *models.WorkflowDefinition) error {
	if workflow.Name == "" {
		return ErrWorkflowNameRequired
	}

	if len(workflow.Nodes) == 0 {
		return ErrNodesRequired
	}

	hasTrigger := false

	for _, node := range workflow.Nodes {
		if node.Type == models.NodeTypeTrigger {
			hasTrigger = true

			break
		}
	}

	if !hasTrigger {
		return ErrTriggerNodeRequired
	}

	if err := s.registry.ValidateDefinition(workflow); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	order, err := graph.TopologicalOrder(workflow.Nodes, workflow.Edges)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	workflow.ExecutionOrder = order

	return nil
}
