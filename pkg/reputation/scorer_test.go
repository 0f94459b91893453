package reputation

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence/file"
)

func TestScoreNothingSent(t *testing.T) {
	score, factors := Score(models.DailyStats{})

	assert.Equal(t, 100, score)
	assert.InDelta(t, 100, factors["bounce"], 1e-9)
}

func TestScoreBlendedFactors(t *testing.T) {
	// bounce_factor = 100 - 0.06x500 - 0.02x500 = 60
	// complaint_factor = 100 - 0.002x100000 = -100, clamped to 0
	// delivery_factor = 940/1000 x 100 = 94
	// engagement_factor = (300/940)x200 + (20/940)x1000 = 85.106...
	stats := models.DailyStats{
		Sent:        1000,
		Delivered:   940,
		Bounced:     60,
		HardBounces: 20,
		Complaints:  2,
		Opens:       300,
		Clicks:      20,
	}

	score, factors := Score(stats)

	assert.InDelta(t, 60, factors["bounce"], 1e-9)
	assert.InDelta(t, 0, factors["complaint"], 1e-9)
	assert.InDelta(t, 94, factors["delivery"], 1e-9)
	assert.InDelta(t, 85.106, factors["engagement"], 0.001)
	assert.Equal(t, 48, score)
}

func TestScorePerfectDay(t *testing.T) {
	stats := models.DailyStats{
		Sent:      100,
		Delivered: 100,
		Opens:     60,
		Clicks:    10,
	}

	score, factors := Score(stats)

	assert.InDelta(t, 100, factors["bounce"], 1e-9)
	assert.InDelta(t, 100, factors["complaint"], 1e-9)
	assert.InDelta(t, 100, factors["delivery"], 1e-9)
	assert.InDelta(t, 100, factors["engagement"], 1e-9, "engagement caps at 100")
	assert.Equal(t, 100, score)
}

func TestScoreNeutralEngagementWhenNothingDelivered(t *testing.T) {
	stats := models.DailyStats{Sent: 10, Bounced: 10}

	_, factors := Score(stats)
	assert.InDelta(t, 50, factors["engagement"], 1e-9)
}

func TestScoreMonotonicInBounces(t *testing.T) {
	previous := 101

	for bounced := 0; bounced <= 100; bounced += 5 {
		stats := models.DailyStats{
			Sent:      100,
			Delivered: 100 - bounced,
			Bounced:   bounced,
			Opens:     30,
		}

		score, _ := Score(stats)
		assert.LessOrEqual(t, score, previous,
			"more bounces must never raise the score")

		previous = score
	}
}

func TestScoreMonotonicInEngagement(t *testing.T) {
	previous := -1

	for opens := 0; opens <= 90; opens += 10 {
		stats := models.DailyStats{
			Sent:      100,
			Delivered: 90,
			Bounced:   10,
			Opens:     opens,
		}

		score, _ := Score(stats)
		assert.GreaterOrEqual(t, score, previous,
			"more opens must never lower the score")

		previous = score
	}
}

func TestHealthBands(t *testing.T) {
	tests := []struct {
		score  int
		expect models.HealthStatus
	}{
		{100, models.HealthExcellent},
		{90, models.HealthExcellent},
		{89, models.HealthGood},
		{70, models.HealthGood},
		{69, models.HealthFair},
		{50, models.HealthFair},
		{49, models.HealthPoor},
		{30, models.HealthPoor},
		{29, models.HealthCritical},
		{0, models.HealthCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, models.HealthStatusFor(tt.score), "score %d", tt.score)
	}
}

func TestProviderFor(t *testing.T) {
	tests := []struct {
		recipient string
		expect    string
	}{
		{"alice@gmail.com", ProviderGmail},
		{"bob@GOOGLEMAIL.COM", ProviderGmail},
		{"carol@hotmail.co.uk", ProviderOutlook},
		{"dave@live.com", ProviderOutlook},
		{"erin@ymail.com", ProviderYahoo},
		{"frank@fastmail.fm", ProviderOther},
		{"corp.example.com", ProviderOther},
		{"yahoo.com", ProviderYahoo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ProviderFor(tt.recipient), tt.recipient)
	}
}

func newScorerHarness(t *testing.T) (*Scorer, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	scorer := NewScorer(persistence, nil, slog.Default())

	return scorer, persistence
}

func seedDomain(t *testing.T, persistence *file.Persistence, id string, status models.DomainStatus, health models.HealthStatus) {
	t.Helper()

	require.NoError(t, persistence.Domains().SaveDomain(t.Context(), &models.SendingDomain{
		ID:           id,
		Domain:       id + ".example.com",
		Status:       status,
		HealthStatus: health,
		HealthScore:  20,
	}))
}

func TestCalculateDomainHealthPersistsRollup(t *testing.T) {
	scorer, persistence := newScorerHarness(t)
	seedDomain(t, persistence, "dom-1", models.DomainStatusActive, models.HealthExcellent)

	date := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	stats := models.DailyStats{Sent: 1000, Delivered: 940, Bounced: 60, HardBounces: 20, Complaints: 2, Opens: 300, Clicks: 20}
	require.NoError(t, persistence.Domains().SaveDailyStats(t.Context(), "dom-1", date.Truncate(24*time.Hour), "", stats))

	gmail := models.DailyStats{Sent: 500, Delivered: 490, Bounced: 10, Opens: 200}
	require.NoError(t, persistence.Domains().SaveDailyStats(t.Context(), "dom-1", date.Truncate(24*time.Hour), ProviderGmail, gmail))

	health, err := scorer.CalculateDomainHealth(t.Context(), "dom-1", date)
	require.NoError(t, err)

	assert.Equal(t, 48, health.HealthScore)
	assert.Equal(t, models.HealthCritical, health.HealthStatus)

	domain, err := persistence.Domains().DomainByID(t.Context(), "dom-1")
	require.NoError(t, err)
	assert.Equal(t, 48, domain.HealthScore)
	assert.Equal(t, models.HealthCritical, domain.HealthStatus)

	// Re-running the same day is an idempotent upsert.
	again, err := scorer.CalculateDomainHealth(t.Context(), "dom-1", date)
	require.NoError(t, err)
	assert.Equal(t, health.HealthScore, again.HealthScore)
}

func TestCalculateDomainHealthNoTelemetry(t *testing.T) {
	scorer, persistence := newScorerHarness(t)
	seedDomain(t, persistence, "dom-1", models.DomainStatusActive, models.HealthGood)

	health, err := scorer.CalculateDomainHealth(t.Context(), "dom-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, health.HealthScore, "no traffic scores neutral")
}

func TestAutoPauseSweep(t *testing.T) {
	scorer, persistence := newScorerHarness(t)
	seedDomain(t, persistence, "critical-active", models.DomainStatusActive, models.HealthCritical)
	seedDomain(t, persistence, "critical-paused", models.DomainStatusPaused, models.HealthCritical)
	seedDomain(t, persistence, "healthy-active", models.DomainStatusActive, models.HealthGood)

	warming := &models.SendingDomain{
		ID:            "critical-warming",
		Domain:        "warm.example.com",
		Status:        models.DomainStatusWarming,
		WarmingStatus: models.WarmingInProgress,
		WarmingDay:    3,
		HealthStatus:  models.HealthCritical,
	}
	require.NoError(t, persistence.Domains().SaveDomain(t.Context(), warming))

	paused, err := scorer.AutoPauseSweep(t.Context())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"critical-active", "critical-warming"}, paused)

	reloaded, err := persistence.Domains().DomainByID(t.Context(), "critical-warming")
	require.NoError(t, err)
	assert.Equal(t, models.DomainStatusPaused, reloaded.Status)
	assert.Equal(t, models.WarmingPaused, reloaded.WarmingStatus)
	assert.Equal(t, 3, reloaded.WarmingDay, "ramp position is preserved")

	healthy, err := persistence.Domains().DomainByID(t.Context(), "healthy-active")
	require.NoError(t, err)
	assert.Equal(t, models.DomainStatusActive, healthy.Status)
}
