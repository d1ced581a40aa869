// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "time"

// reldex component weights. They sum to 1.
const (
	weightDuration    = 0.30
	weightStability   = 0.30
	weightRollout     = 0.25
	weightLooseEnds   = 0.15
	targetDuration    = 7 * 24 * time.Hour
	targetFixCount    = 3
	targetRolloutDays = 7
)

// band maps a value onto a 0..1 score: everything at or under good is a 1,
// everything at or over bad is a 0, linear in between.
func band(value, good, bad float64) float64 {
	if value <= good {
		return 1
	}
	if value >= bad {
		return 0
	}
	return (bad - value) / (bad - good)
}

// Reldex scores a release between 0 and 1. Nil until the release carries
// enough signal, which means at least one platform with a stability window.
func Reldex(breakdown ReleaseBreakdown, openAutomaticPRs int) *float64 {
	type sample struct {
		stabilitySec int64
		fixes        int
		rolloutSec   *int64
	}
	samples := []sample{}
	for _, platform := range breakdown.Platforms {
		if platform.StabilityDurationSec == nil {
			continue
		}
		samples = append(samples, sample{
			stabilitySec: *platform.StabilityDurationSec,
			// every pre-prod release after the first one means a fix
			// landed during stabilization
			fixes:      max(platform.InternalReleaseCount+platform.BetaReleaseCount-1, 0),
			rolloutSec: platform.RolloutDurationSec,
		})
	}
	if len(samples) == 0 {
		return nil
	}

	var durationScore float64
	if breakdown.OverallDurationSec != nil {
		durationScore = band(float64(*breakdown.OverallDurationSec), targetDuration.Seconds(), 3*targetDuration.Seconds())
	} else {
		worst := int64(0)
		for _, s := range samples {
			if s.stabilitySec > worst {
				worst = s.stabilitySec
			}
		}
		durationScore = band(float64(worst), targetDuration.Seconds(), 3*targetDuration.Seconds())
	}

	var stabilityScore, rolloutScore float64
	for _, s := range samples {
		stabilityScore += band(float64(s.fixes), targetFixCount, 4*targetFixCount)
		if s.rolloutSec != nil {
			rolloutScore += band(float64(*s.rolloutSec), float64(targetRolloutDays)*24*3600, 3*float64(targetRolloutDays)*24*3600)
		}
	}
	stabilityScore /= float64(len(samples))
	rolloutScore /= float64(len(samples))

	looseEndsScore := band(float64(openAutomaticPRs), 0, 3)

	score := weightDuration*durationScore +
		weightStability*stabilityScore +
		weightRollout*rolloutScore +
		weightLooseEnds*looseEndsScore
	return &score
}
