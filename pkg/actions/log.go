package actions

import (
	"context"
	"log/slog"

	"github.com/sendloop/sendloop/pkg/models"
)

// Log writes a message to the process log. Useful while authoring
// workflows; a no-op as far as the outside world is concerned.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("action_type", "log")}
}

func (a *Log) Type() string {
	return "log"
}

func (a *Log) Execute(ctx context.Context, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	message, _ := input["message"].(string)

	a.logger.InfoContext(ctx, "Workflow log",
		"execution_id", execution.ID, "message", message)

	return map[string]any{"message": message}, nil
}
