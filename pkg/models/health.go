package models

import "time"

// HealthStatus is the derived band of a health score. Bands are
// non-overlapping and evaluated high to low.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthCritical  HealthStatus = "critical"
)

// HealthStatusFor maps a 0-100 score to its band.
func HealthStatusFor(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 50:
		return HealthFair
	case score >= 30:
		return HealthPoor
	default:
		return HealthCritical
	}
}

// DailyStats aggregates one day of delivery telemetry for a domain,
// optionally sliced by recipient mailbox provider.
type DailyStats struct {
	Sent        int `json:"sent"`
	Delivered   int `json:"delivered"`
	Bounced     int `json:"bounced"`
	HardBounces int `json:"hard_bounces"`
	SoftBounces int `json:"soft_bounces"`
	Complaints  int `json:"complaints"`
	Opens       int `json:"opens"`
	Clicks      int `json:"clicks"`
}

// BounceRate returns bounced/sent, zero when nothing was sent.
func (s DailyStats) BounceRate() float64 { return s.rate(s.Bounced) }

// HardBounceRate returns hard_bounces/sent.
func (s DailyStats) HardBounceRate() float64 { return s.rate(s.HardBounces) }

// ComplaintRate returns complaints/sent.
func (s DailyStats) ComplaintRate() float64 { return s.rate(s.Complaints) }

// DeliveryRate returns delivered/sent.
func (s DailyStats) DeliveryRate() float64 { return s.rate(s.Delivered) }

// OpenRate returns opens/delivered.
func (s DailyStats) OpenRate() float64 {
	if s.Delivered == 0 {
		return 0
	}

	return float64(s.Opens) / float64(s.Delivered)
}

// ClickRate returns clicks/delivered.
func (s DailyStats) ClickRate() float64 {
	if s.Delivered == 0 {
		return 0
	}

	return float64(s.Clicks) / float64(s.Delivered)
}

func (s DailyStats) rate(count int) float64 {
	if s.Sent == 0 {
		return 0
	}

	return float64(count) / float64(s.Sent)
}

// DomainHealth is the daily rollup of all traffic for a domain,
// independent of warming. One row per domain per calendar day, upserted
// idempotently.
type DomainHealth struct {
	ID       string    `json:"id"`
	DomainID string    `json:"domain_id" validate:"required"`
	Date     time.Time `json:"date"`

	Stats DailyStats `json:"stats"`

	HealthScore  int          `json:"health_score"`
	HealthStatus HealthStatus `json:"health_status"`

	// ScoreFactors records each weighted factor's clamped value for
	// operator diagnosis.
	ScoreFactors map[string]float64 `json:"score_factors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ISPMetrics is DomainHealth sliced by recipient mailbox provider,
// keyed by (domain, isp, date).
type ISPMetrics struct {
	ID       string    `json:"id"`
	DomainID string    `json:"domain_id" validate:"required"`
	ISP      string    `json:"isp"       validate:"required"`
	Date     time.Time `json:"date"`

	Stats DailyStats `json:"stats"`

	HealthScore  int          `json:"health_score"`
	HealthStatus HealthStatus `json:"health_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
