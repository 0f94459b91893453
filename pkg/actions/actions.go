// Package actions implements the side-effecting action handlers the
// workflow engine delegates to: queueing email, mutating the record,
// creating follow-up tasks and calling external HTTP endpoints.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendloop/sendloop/pkg/models"
)

// Handler executes one action type with an input already resolved
// against the execution context.
type Handler interface {
	Type() string
	Execute(ctx context.Context, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error)
}

// Executor dispatches action invocations to registered handlers. It is
// the production protocol.ActionExecutor.
type Executor struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewExecutor(logger *slog.Logger, handlers ...Handler) *Executor {
	executor := &Executor{
		handlers: make(map[string]Handler),
		logger:   logger.With("module", "actions"),
	}

	for _, handler := range handlers {
		executor.Register(handler)
	}

	return executor
}

func (e *Executor) Register(handler Handler) {
	e.handlers[handler.Type()] = handler
}

func (e *Executor) ExecuteAction(ctx context.Context, actionType string, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	handler, ok := e.handlers[actionType]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}

	e.logger.InfoContext(ctx, "Executing action",
		"action_type", actionType, "execution_id", execution.ID)

	output, err := handler.Execute(ctx, input, execution)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", actionType, err)
	}

	return output, nil
}
