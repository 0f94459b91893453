package file

import (
	"context"
	"errors"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

const (
	kindExecutions = "executions"
	kindSteps      = "steps"
)

// ExecutionRepository stores executions with one append-only step log
// file per execution.
type ExecutionRepository struct {
	store *Persistence
}

// ExecutionByID loads an execution by id.
func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.executionByID(id)
}

func (r *ExecutionRepository) executionByID(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution
	if err := r.store.read(kindExecutions, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return &execution, nil
}

// SaveExecution writes an execution's current state.
func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	execution.UpdatedAt = time.Now().UTC()

	return r.store.write(kindExecutions, execution.ID, execution)
}

// RecordStep appends a step and saves the execution under one lock, the
// file-store equivalent of a transaction.
func (r *ExecutionRepository) RecordStep(_ context.Context, execution *models.WorkflowExecution, step *models.WorkflowExecutionStep) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var steps []*models.WorkflowExecutionStep

	err := r.store.read(kindSteps, execution.ID, &steps, persistence.ErrExecutionNotFound)
	if err != nil && !errors.Is(err, persistence.ErrExecutionNotFound) {
		return persistence.NewExecutionError("RecordStep", execution.ID, err)
	}

	steps = append(steps, step)

	if err := r.store.write(kindSteps, execution.ID, steps); err != nil {
		return persistence.NewExecutionError("RecordStep", execution.ID, err)
	}

	execution.UpdatedAt = time.Now().UTC()

	if err := r.store.write(kindExecutions, execution.ID, execution); err != nil {
		return persistence.NewExecutionError("RecordStep", execution.ID, err)
	}

	return nil
}

// StepsByExecution returns the ordered step log of one execution.
func (r *ExecutionRepository) StepsByExecution(_ context.Context, executionID string) ([]*models.WorkflowExecutionStep, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var steps []*models.WorkflowExecutionStep

	err := r.store.read(kindSteps, executionID, &steps, persistence.ErrExecutionNotFound)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return steps, nil
}

// DueExecutions returns paused executions whose resume time or event-wait
// timeout has passed.
func (r *ExecutionRepository) DueExecutions(_ context.Context, now time.Time) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.listIDs(kindExecutions)
	if err != nil {
		return nil, err
	}

	var due []*models.WorkflowExecution

	for _, id := range ids {
		execution, err := r.executionByID(id)
		if err != nil {
			return nil, err
		}

		if execution.Status != models.ExecutionStatusPaused {
			continue
		}

		if execution.ResumeAt != nil && !execution.ResumeAt.After(now) {
			due = append(due, execution)

			continue
		}

		if execution.WaitTimeoutAt != nil && !execution.WaitTimeoutAt.After(now) {
			due = append(due, execution)
		}
	}

	return due, nil
}
