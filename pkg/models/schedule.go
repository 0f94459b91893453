package models

import (
	"errors"
	"time"
)

// WarmingStep is one point on a ramp curve: the target daily volume at a
// given warming day. Steps are ordered by strictly increasing Day.
type WarmingStep struct {
	Day    int `json:"day"    validate:"required,min=1"`
	Volume int `json:"volume" validate:"required,min=1"`
}

// WarmingSchedule is a named ramp policy. The system schedules
// (conservative, moderate, aggressive) are immutable seed data;
// workspace-created schedules are editable.
type WarmingSchedule struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Name        string `json:"name" validate:"required"`
	IsSystem    bool   `json:"is_system"`

	Steps []WarmingStep `json:"steps" validate:"required,min=1,dive"`

	MaxBounceRate    float64 `json:"max_bounce_rate"`
	MaxComplaintRate float64 `json:"max_complaint_rate"`
	MinDeliveryRate  float64 `json:"min_delivery_rate"`

	AutoPauseOnThreshold bool `json:"auto_pause_on_threshold"`
	AutoAdjustVolume     bool `json:"auto_adjust_volume"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid warming schedule")

// Validate checks structural invariants on the ramp curve.
func (s *WarmingSchedule) Validate() error {
	if len(s.Steps) == 0 {
		return ErrInvalidSchedule
	}

	previous := 0
	for _, step := range s.Steps {
		if step.Day <= previous || step.Volume <= 0 {
			return ErrInvalidSchedule
		}

		previous = step.Day
	}

	return nil
}

// MaxDay returns the last defined day of the ramp.
func (s *WarmingSchedule) MaxDay() int {
	if len(s.Steps) == 0 {
		return 0
	}

	return s.Steps[len(s.Steps)-1].Day
}

// FinalVolume returns the volume of the last ramp step, which becomes the
// domain's daily limit once warming completes.
func (s *WarmingSchedule) FinalVolume() int {
	if len(s.Steps) == 0 {
		return 0
	}

	return s.Steps[len(s.Steps)-1].Volume
}
