package actions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/models"
)

// ErrTitleRequired is returned when a create_task input has no title.
var ErrTitleRequired = errors.New("'title' is required")

// CreateTask produces a follow-up task for a human (call the lead,
// review the reply). The task payload flows to the task system through
// the node output; due dates are day offsets from now.
type CreateTask struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewCreateTask(logger *slog.Logger) *CreateTask {
	return &CreateTask{
		logger: logger.With("action_type", "create_task"),
		now:    time.Now,
	}
}

func (a *CreateTask) Type() string {
	return "create_task"
}

func (a *CreateTask) Execute(ctx context.Context, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	title, _ := input["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	description, _ := input["description"].(string)
	assignee, _ := input["assignee"].(string)

	dueInDays := 0
	if days, ok := input["due_in_days"].(float64); ok {
		dueInDays = int(days)
	}

	task := map[string]any{
		"task_id":     uuid.New().String(),
		"title":       title,
		"description": description,
		"assignee":    assignee,
		"record_id":   execution.RecordID,
		"due_at":      a.now().UTC().AddDate(0, 0, dueInDays).Format(time.RFC3339),
	}

	a.logger.InfoContext(ctx, "Created task",
		"execution_id", execution.ID, "title", title, "assignee", assignee)

	return task, nil
}
