package models

import "time"

// WarmingProgress is one row per domain per warming day. Counters are
// incremented during the day and finalized when the day advances.
type WarmingProgress struct {
	ID       string `json:"id"`
	DomainID string `json:"domain_id" validate:"required"`
	Day      int    `json:"day"       validate:"required,min=1"`

	TargetVolume int `json:"target_volume"`
	ActualVolume int `json:"actual_volume"`

	Sent       int `json:"sent"`
	Delivered  int `json:"delivered"`
	Bounced    int `json:"bounced"`
	Complaints int `json:"complaints"`

	DeliveryRate  float64 `json:"delivery_rate"`
	BounceRate    float64 `json:"bounce_rate"`
	ComplaintRate float64 `json:"complaint_rate"`

	ThresholdExceeded bool   `json:"threshold_exceeded"`
	AIRecommendation  string `json:"ai_recommendation,omitempty"`

	Completed bool      `json:"completed"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finalize computes the derived rates and marks the day complete.
// Rates are zero when nothing was sent.
func (p *WarmingProgress) Finalize() {
	if p.Sent > 0 {
		p.DeliveryRate = float64(p.Delivered) / float64(p.Sent)
		p.BounceRate = float64(p.Bounced) / float64(p.Sent)
		p.ComplaintRate = float64(p.Complaints) / float64(p.Sent)
	}

	p.Completed = true
}
