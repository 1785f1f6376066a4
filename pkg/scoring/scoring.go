// Package scoring implements the two scalar scorers used across the
// pipeline: group compactness (Phase 1) and cleaner-to-group fit (Phase 2).
package scoring

import "math"

const baseScore = 100.0

// Round1 rounds v to one decimal place using the half-away-from-zero
// convention required for score determinism: multiply by 10, round half
// away from zero, divide by 10.
func Round1(v float64) float64 {
	scaled := v * 10
	var rounded float64
	if scaled >= 0 {
		rounded = math.Floor(scaled + 0.5)
	} else {
		rounded = math.Ceil(scaled - 0.5)
	}
	return rounded / 10
}

// GroupScore scores a Phase 1 candidate group's compactness.
func GroupScore(avgTravelMin float64, maxTravelMin int, sameZone bool) float64 {
	score := baseScore - 2*avgTravelMin - 3*float64(maxTravelMin)
	if sameZone {
		score += 10
	}
	return Round1(score)
}

// CleanerScoreWeights configures the Phase 2 cleaner-fit scorer.
type CleanerScoreWeights struct {
	Travel          float64
	Load            float64
	PreferenceBonus float64
}

// DefaultCleanerScoreWeights returns the documented default weights
// {travel=2, load=5, preference_bonus=10}.
func DefaultCleanerScoreWeights() CleanerScoreWeights {
	return CleanerScoreWeights{Travel: 2, Load: 5, PreferenceBonus: 10}
}

// ScoreBreakdown decomposes a cleaner-fit score into its components.
type ScoreBreakdown struct {
	Base            float64
	TravelPenalty   float64
	LoadPenalty     float64
	PreferenceBonus float64
}

// CleanerScore scores how well a cleaner fits a candidate group.
// travelFromLastMin is 0 when the cleaner has no recorded last position.
func CleanerScore(weights CleanerScoreWeights, travelFromLastMin int, currentLoad int, preferred bool) (float64, ScoreBreakdown) {
	breakdown := ScoreBreakdown{
		Base:          baseScore,
		TravelPenalty: weights.Travel * float64(travelFromLastMin),
		LoadPenalty:   weights.Load * float64(currentLoad),
	}
	if preferred {
		breakdown.PreferenceBonus = weights.PreferenceBonus
	}

	total := breakdown.Base - breakdown.TravelPenalty - breakdown.LoadPenalty + breakdown.PreferenceBonus
	return Round1(total), breakdown
}
