package cmd

import (
	"context"
	"log/slog"

	"github.com/sendloop/sendloop/pkg/actions"
	"github.com/sendloop/sendloop/pkg/agents"
	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/nodes/action"
	"github.com/sendloop/sendloop/pkg/nodes/agent"
	"github.com/sendloop/sendloop/pkg/nodes/branch"
	"github.com/sendloop/sendloop/pkg/nodes/condition"
	"github.com/sendloop/sendloop/pkg/nodes/trigger"
	"github.com/sendloop/sendloop/pkg/nodes/wait"
	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/registry"
	"github.com/sendloop/sendloop/pkg/subscriptions"
)

// NewSubscriptionStore returns the Redis-backed subscription store when a
// Redis URL is configured, otherwise the in-memory one. Memory stores do
// not survive restarts, so event waits pending across a restart need Redis.
func NewSubscriptionStore(ctx context.Context, logger *slog.Logger, redisURL string) (subscriptions.Store, error) {
	if redisURL == "" {
		return subscriptions.NewMemoryStore(), nil
	}

	return subscriptions.NewRedisStore(ctx, logger, redisURL)
}

// NewRegistry builds the node registry with every native node type wired
// to its collaborators.
func NewRegistry(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
	store subscriptions.Store,
	agentServiceURL string,
) *registry.Registry {
	executor := actions.NewExecutor(logger,
		actions.NewSendEmail(persistence, eventBus, logger),
		actions.NewUpdateRecord(logger),
		actions.NewCreateTask(logger),
		actions.NewHTTPRequest(logger),
		actions.NewLog(logger),
	)

	reg := registry.NewRegistry(logger)
	reg.Register(trigger.NewTriggerNodeFactory())
	reg.Register(action.NewActionNodeFactory(executor))
	reg.Register(condition.NewConditionNodeFactory())
	reg.Register(branch.NewBranchNodeFactory())
	reg.Register(wait.NewWaitNodeFactory(store, nil))
	reg.Register(agent.NewAgentNodeFactory(agents.NewHTTPRunner(agentServiceURL, logger)))

	return reg
}
