package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

var (
	ErrRecipientRequired = errors.New("'to' is required")
	ErrDomainRequired    = errors.New("'domain_id' is required")
	ErrDomainCannotSend  = errors.New("domain is not eligible to send")
)

// SendEmail queues an outbound message after checking the sending
// domain's eligibility and daily cap. The message leaves the engine as
// an EmailQueued event; delivery happens downstream.
type SendEmail struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func NewSendEmail(persistence persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *SendEmail {
	return &SendEmail{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      logger.With("action_type", "send_email"),
	}
}

func (a *SendEmail) Type() string {
	return "send_email"
}

func (a *SendEmail) Execute(ctx context.Context, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	to, _ := input["to"].(string)
	if to == "" {
		return nil, ErrRecipientRequired
	}

	domainID, _ := input["domain_id"].(string)
	if domainID == "" {
		return nil, ErrDomainRequired
	}

	domain, err := a.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if !domain.CanSend() {
		return nil, fmt.Errorf("%w: %s is %s with %d/%d sent today",
			ErrDomainCannotSend, domain.Domain, domain.Status, domain.DailySent, domain.DailyLimit)
	}

	subject, _ := input["subject"].(string)
	templateID, _ := input["template_id"].(string)
	variables, _ := input["variables"].(map[string]any)

	messageID := uuid.New().String()

	// Count the message against today's cap before it leaves, so a
	// burst of executions cannot overshoot the warming limit.
	domain.DailySent++
	if err := a.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to count message against daily cap: %w", err)
	}

	if a.eventBus != nil {
		event := events.EmailQueued{
			BaseEvent:   events.NewBaseEvent(events.EmailQueuedEvent),
			MessageID:   messageID,
			ExecutionID: execution.ID,
			DomainID:    domain.ID,
			Domain:      domain.Domain,
			To:          to,
			Subject:     subject,
			TemplateID:  templateID,
			Variables:   variables,
		}

		if err := a.eventBus.Publish(ctx, domain.ID, event); err != nil {
			a.logger.ErrorContext(ctx, "Failed to publish queued email", "error", err)
		}
	}

	a.logger.InfoContext(ctx, "Queued email",
		"message_id", messageID, "domain", domain.Domain, "to", to)

	return map[string]any{
		"message_id": messageID,
		"domain":     domain.Domain,
		"to":         to,
		"daily_sent": domain.DailySent,
	}, nil
}
