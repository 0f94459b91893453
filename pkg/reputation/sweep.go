package reputation

import (
	"context"
	"fmt"

	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/models"
)

// AutoPauseSweep force-pauses every domain whose health has gone critical
// while it is still sending. It is a protective circuit breaker that runs
// independently of the per-day warming advance, so a domain that turns
// critical mid-ramp stops immediately instead of at the next day boundary.
// Returns the ids of the domains it paused.
func (s *Scorer) AutoPauseSweep(ctx context.Context) ([]string, error) {
	domains, err := s.persistence.Domains().Domains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	var paused []string

	for _, domain := range domains {
		if domain.HealthStatus != models.HealthCritical {
			continue
		}

		if domain.Status != models.DomainStatusActive && domain.Status != models.DomainStatusWarming {
			continue
		}

		domain.Status = models.DomainStatusPaused
		if domain.WarmingStatus == models.WarmingInProgress {
			domain.WarmingStatus = models.WarmingPaused
		}

		if err := s.persistence.Domains().SaveDomain(ctx, domain); err != nil {
			return paused, err
		}

		s.logger.WarnContext(ctx, "Auto-paused critical domain",
			"domain", domain.Domain, "health_score", domain.HealthScore)

		s.publish(ctx, domain.ID, events.DomainPaused{
			BaseEvent: events.NewBaseEvent(events.DomainPausedEvent),
			DomainID:  domain.ID,
			Domain:    domain.Domain,
			Reason:    fmt.Sprintf("health score %d is critical", domain.HealthScore),
			Day:       domain.WarmingDay,
		})

		paused = append(paused, domain.ID)
	}

	return paused, nil
}
