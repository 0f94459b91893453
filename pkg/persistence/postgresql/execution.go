package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

// ExecutionRepository handles workflow execution and step database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `
	id
  , workflow_id
  , record_id
  , status
  , current_node_id
  , next_node_id
  , context
  , error
  , error_node_id
  , is_dry_run
  , paused_at
  , resume_at
  , wait_event_type
  , wait_timeout_at
  , wait_kind
  , started_at
  , completed_at
  , created_at
  , updated_at
`

// ExecutionByID loads an execution by id.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := "SELECT " + executionColumns + " FROM workflow_executions WHERE id = $1"

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, persistence.NewExecutionError("get", id, err)
	}

	return execution, nil
}

// SaveExecution upserts an execution row.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := saveExecutionTx(ctx, r.db, execution); err != nil {
		return persistence.NewExecutionError("save", execution.ID, err)
	}

	return nil
}

// RecordStep commits the step record and the execution's new state in one
// transaction, so the audit log and execution status never diverge.
func (r *ExecutionRepository) RecordStep(ctx context.Context, execution *models.WorkflowExecution, step *models.WorkflowExecutionStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	defer rollback(ctx, r.logger, tx)

	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	input, err := json.Marshal(step.Input)
	if err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	output, err := json.Marshal(step.Output)
	if err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	query := `
		INSERT INTO workflow_execution_steps (
			id, execution_id, node_id, node_type, node_label, status,
			input, output, condition_result, selected_branch, error,
			started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.ExecContext(ctx, query,
		step.ID, step.ExecutionID, step.NodeID, string(step.NodeType), step.NodeLabel,
		string(step.Status), input, output, step.ConditionResult, step.SelectedBranch,
		step.Error, step.StartedAt, step.Duration.Milliseconds())
	if err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	if err := saveExecutionTx(ctx, tx, execution); err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewExecutionError("record_step", execution.ID, err)
	}

	return nil
}

// StepsByExecution returns the step log in insertion order.
func (r *ExecutionRepository) StepsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionStep, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , node_id
		  , node_type
		  , node_label
		  , status
		  , input
		  , output
		  , condition_result
		  , selected_branch
		  , error
		  , started_at
		  , duration_ms
		FROM workflow_execution_steps
		WHERE execution_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("steps", executionID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.WorkflowExecutionStep, 0)

	for rows.Next() {
		var (
			step       models.WorkflowExecutionStep
			input      []byte
			output     []byte
			durationMS int64
		)

		err := rows.Scan(
			&step.ID, &step.ExecutionID, &step.NodeID, &step.NodeType, &step.NodeLabel,
			&step.Status, &input, &output, &step.ConditionResult, &step.SelectedBranch,
			&step.Error, &step.StartedAt, &durationMS)
		if err != nil {
			return nil, persistence.NewExecutionError("steps", executionID, err)
		}

		if len(input) > 0 {
			if err := json.Unmarshal(input, &step.Input); err != nil {
				return nil, persistence.NewExecutionError("steps", executionID, err)
			}
		}

		if len(output) > 0 {
			if err := json.Unmarshal(output, &step.Output); err != nil {
				return nil, persistence.NewExecutionError("steps", executionID, err)
			}
		}

		step.Duration = time.Duration(durationMS) * time.Millisecond

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("steps", executionID, err)
	}

	return steps, nil
}

// DueExecutions returns paused executions whose resume_at or event-wait
// timeout has passed.
func (r *ExecutionRepository) DueExecutions(ctx context.Context, now time.Time) ([]*models.WorkflowExecution, error) {
	query := "SELECT " + executionColumns + `
		FROM workflow_executions
		WHERE status = $1
		  AND ((resume_at IS NOT NULL AND resume_at <= $2)
			OR (wait_timeout_at IS NOT NULL AND wait_timeout_at <= $2))
		ORDER BY updated_at
	`

	rows, err := r.db.QueryContext(ctx, query, string(models.ExecutionStatusPaused), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due executions: %w", err)
	}

	return executions, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveExecutionTx(ctx context.Context, db execer, execution *models.WorkflowExecution) error {
	if execution.Context == nil {
		execution.Context = models.NewExecutionContext()
	}

	execContext, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, record_id, status, current_node_id, next_node_id,
			context, error, error_node_id, is_dry_run,
			paused_at, resume_at, wait_event_type, wait_timeout_at, wait_kind,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			next_node_id = EXCLUDED.next_node_id,
			context = EXCLUDED.context,
			error = EXCLUDED.error,
			error_node_id = EXCLUDED.error_node_id,
			paused_at = EXCLUDED.paused_at,
			resume_at = EXCLUDED.resume_at,
			wait_event_type = EXCLUDED.wait_event_type,
			wait_timeout_at = EXCLUDED.wait_timeout_at,
			wait_kind = EXCLUDED.wait_kind,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.RecordID, string(execution.Status),
		execution.CurrentNodeID, execution.NextNodeID, execContext,
		execution.Error, execution.ErrorNodeID, execution.IsDryRun,
		execution.PausedAt, execution.ResumeAt, execution.WaitEventType,
		execution.WaitTimeoutAt, string(execution.WaitKind),
		execution.StartedAt, execution.CompletedAt, execution.CreatedAt, execution.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		execContext []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.RecordID, &execution.Status,
		&execution.CurrentNodeID, &execution.NextNodeID, &execContext,
		&execution.Error, &execution.ErrorNodeID, &execution.IsDryRun,
		&execution.PausedAt, &execution.ResumeAt, &execution.WaitEventType,
		&execution.WaitTimeoutAt, &execution.WaitKind,
		&execution.StartedAt, &execution.CompletedAt, &execution.CreatedAt, &execution.UpdatedAt)
	if err != nil {
		return nil, err
	}

	execution.Context = models.NewExecutionContext()
	if len(execContext) > 0 {
		if err := json.Unmarshal(execContext, execution.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context: %w", err)
		}
	}

	return &execution, nil
}

func rollback(ctx context.Context, logger *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
	}
}
