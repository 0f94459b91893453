// Package warming implements the sending-domain warm-up engine: the daily
// volume ramp, adaptive adjustment and day-advance state machine.
package warming

import (
	"fmt"
	"math"
	"strings"

	"github.com/sendloop/sendloop/pkg/models"
)

// Adjustment factor bounds. A single bad day cannot collapse the ramp to
// zero and a single good day cannot cause a runaway increase.
const (
	minAdjustmentFactor = 0.5
	maxAdjustmentFactor = 1.2
)

// TargetVolume computes the scheduled volume for a warming day by linear
// interpolation between the two ramp steps bracketing it. Days before the
// first step use the first step's volume; days past the last step use the
// last step's volume.
func TargetVolume(steps []models.WarmingStep, day int) int {
	if len(steps) == 0 {
		return 0
	}

	if day <= steps[0].Day {
		return steps[0].Volume
	}

	last := steps[len(steps)-1]
	if day >= last.Day {
		return last.Volume
	}

	for i := 1; i < len(steps); i++ {
		if day == steps[i].Day {
			return steps[i].Volume
		}

		if day < steps[i].Day {
			prev, next := steps[i-1], steps[i]
			span := float64(next.Day - prev.Day)
			offset := float64(day - prev.Day)
			volume := float64(prev.Volume) + float64(next.Volume-prev.Volume)*offset/span

			return int(math.Round(volume))
		}
	}

	return last.Volume
}

// AdjustmentFactor derives the multiplicative scale for the next day's
// volume from the previous day's finalized rates. Penalties compound
// multiplicatively; the result is clamped to [0.5, 1.2]. The returned
// rationale is recorded on the finalized progress row for operators.
func AdjustmentFactor(progress *models.WarmingProgress, schedule *models.WarmingSchedule) (float64, string) {
	factor := 1.0

	var reasons []string

	switch {
	case schedule.MaxBounceRate > 0 && progress.BounceRate > schedule.MaxBounceRate*0.75:
		factor *= 0.6

		reasons = append(reasons, fmt.Sprintf(
			"bounce rate %.2f%% above three-quarters of the %.2f%% limit, reducing volume 40%%",
			progress.BounceRate*100, schedule.MaxBounceRate*100))
	case schedule.MaxBounceRate > 0 && progress.BounceRate > schedule.MaxBounceRate*0.5:
		factor *= 0.8

		reasons = append(reasons, fmt.Sprintf(
			"bounce rate %.2f%% above half of the %.2f%% limit, reducing volume 20%%",
			progress.BounceRate*100, schedule.MaxBounceRate*100))
	}

	switch {
	case schedule.MaxComplaintRate > 0 && progress.ComplaintRate > schedule.MaxComplaintRate*0.75:
		factor *= 0.5

		reasons = append(reasons, fmt.Sprintf(
			"complaint rate %.3f%% above three-quarters of the %.3f%% limit, reducing volume 50%%",
			progress.ComplaintRate*100, schedule.MaxComplaintRate*100))
	case schedule.MaxComplaintRate > 0 && progress.ComplaintRate > schedule.MaxComplaintRate*0.5:
		factor *= 0.7

		reasons = append(reasons, fmt.Sprintf(
			"complaint rate %.3f%% above half of the %.3f%% limit, reducing volume 30%%",
			progress.ComplaintRate*100, schedule.MaxComplaintRate*100))
	}

	if progress.DeliveryRate > 0.98 {
		factor *= 1.1

		reasons = append(reasons, fmt.Sprintf(
			"delivery rate %.2f%% above 98%%, increasing volume 10%%",
			progress.DeliveryRate*100))
	}

	if factor < minAdjustmentFactor {
		factor = minAdjustmentFactor
	}

	if factor > maxAdjustmentFactor {
		factor = maxAdjustmentFactor
	}

	rationale := "no adjustment, rates within limits"
	if len(reasons) > 0 {
		rationale = strings.Join(reasons, "; ")
	}

	return factor, rationale
}
