// Package reputation computes sending-domain health scores from delivery
// telemetry and enforces the protective auto-pause circuit breaker.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

// Factor weights. Bounce and complaint behavior dominate because they are
// what mailbox providers actually throttle on.
const (
	weightBounce     = 0.35
	weightComplaint  = 0.35
	weightDelivery   = 0.15
	weightEngagement = 0.15
)

// Scorer computes and persists daily health rollups.
type Scorer struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewScorer creates a reputation scorer. The event bus is optional.
func NewScorer(persistence persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Scorer {
	return &Scorer{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      logger.With("module", "reputation"),
		now:         time.Now,
	}
}

// Score computes the 0-100 health score for one day of telemetry, along
// with the clamped per-factor breakdown. A day with nothing sent scores a
// neutral 100.
func Score(stats models.DailyStats) (int, map[string]float64) {
	if stats.Sent == 0 {
		return 100, map[string]float64{
			"bounce":     100,
			"complaint":  100,
			"delivery":   100,
			"engagement": 100,
		}
	}

	bounceFactor := clampFactor(100 - stats.BounceRate()*500 - stats.HardBounceRate()*500)
	complaintFactor := clampFactor(100 - stats.ComplaintRate()*100000)
	deliveryFactor := clampFactor(stats.DeliveryRate() * 100)

	engagementFactor := 50.0
	if stats.Delivered > 0 {
		engagementFactor = clampFactor(stats.OpenRate()*200 + stats.ClickRate()*1000)
	}

	score := bounceFactor*weightBounce +
		complaintFactor*weightComplaint +
		deliveryFactor*weightDelivery +
		engagementFactor*weightEngagement

	rounded := int(math.Round(score))
	if rounded < 0 {
		rounded = 0
	}

	if rounded > 100 {
		rounded = 100
	}

	return rounded, map[string]float64{
		"bounce":     bounceFactor,
		"complaint":  complaintFactor,
		"delivery":   deliveryFactor,
		"engagement": engagementFactor,
	}
}

// CalculateDomainHealth scores one domain for one day and upserts the
// rollup plus the per-provider slices. The domain's live health fields are
// refreshed from the result. Idempotent per (domain, date).
func (s *Scorer) CalculateDomainHealth(ctx context.Context, domainID string, date time.Time) (*models.DomainHealth, error) {
	domain, err := s.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	date = date.UTC().Truncate(24 * time.Hour)

	stats, err := s.persistence.Domains().DailyStats(ctx, domainID, date)
	if err != nil && !errors.Is(err, persistence.ErrStatsNotFound) {
		return nil, err
	}

	score, factors := Score(stats)
	status := models.HealthStatusFor(score)

	health := &models.DomainHealth{
		ID:           uuid.New().String(),
		DomainID:     domainID,
		Date:         date,
		Stats:        stats,
		HealthScore:  score,
		HealthStatus: status,
		ScoreFactors: factors,
	}

	if err := s.persistence.Domains().UpsertDomainHealth(ctx, health); err != nil {
		return nil, err
	}

	if err := s.scoreProviders(ctx, domainID, date); err != nil {
		return nil, err
	}

	domain.HealthScore = score
	domain.HealthStatus = status

	if err := s.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Calculated domain health",
		"domain", domain.Domain, "date", date.Format("2006-01-02"),
		"score", score, "status", status)

	s.publish(ctx, domainID, events.HealthCalculated{
		BaseEvent:    events.NewBaseEvent(events.HealthCalculatedEvent),
		DomainID:     domainID,
		Domain:       domain.Domain,
		Date:         date,
		HealthScore:  score,
		HealthStatus: status,
	})

	return health, nil
}

// CalculateAll scores every known domain for the given day. Per-domain
// failures are logged and skipped so one bad domain cannot stall the
// nightly rollup.
func (s *Scorer) CalculateAll(ctx context.Context, date time.Time) (int, error) {
	domains, err := s.persistence.Domains().Domains(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list domains: %w", err)
	}

	scored := 0

	for _, domain := range domains {
		if _, err := s.CalculateDomainHealth(ctx, domain.ID, date); err != nil {
			s.logger.ErrorContext(ctx, "Failed to score domain",
				"domain", domain.Domain, "error", err)

			continue
		}

		scored++
	}

	return scored, nil
}

func (s *Scorer) scoreProviders(ctx context.Context, domainID string, date time.Time) error {
	byISP, err := s.persistence.Domains().DailyStatsByISP(ctx, domainID, date)
	if err != nil {
		if errors.Is(err, persistence.ErrStatsNotFound) {
			return nil
		}

		return err
	}

	for isp, stats := range byISP {
		score, _ := Score(stats)

		metrics := &models.ISPMetrics{
			ID:           uuid.New().String(),
			DomainID:     domainID,
			ISP:          isp,
			Date:         date,
			Stats:        stats,
			HealthScore:  score,
			HealthStatus: models.HealthStatusFor(score),
		}

		if err := s.persistence.Domains().UpsertISPMetrics(ctx, metrics); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scorer) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func clampFactor(value float64) float64 {
	if value < 0 {
		return 0
	}

	if value > 100 {
		return 100
	}

	return value
}
