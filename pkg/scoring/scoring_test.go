package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound1(t *testing.T) {
	assert.Equal(t, 100.1, Round1(100.05))
	assert.Equal(t, 100.0, Round1(99.95))
	assert.Equal(t, -100.0, Round1(-99.95))
}

func TestGroupScore_SameBuildingPair(t *testing.T) {
	// Two tasks at identical coordinates, same zone: avg=1, max=1.
	got := GroupScore(1, 1, true)
	assert.Equal(t, 105.0, got)
}

func TestGroupScore_NoSameZoneBonus(t *testing.T) {
	got := GroupScore(5, 8, false)
	assert.Equal(t, float64(100-10-24), got)
}

func TestCleanerScore_Breakdown(t *testing.T) {
	weights := DefaultCleanerScoreWeights()
	total, breakdown := CleanerScore(weights, 10, 2, true)

	assert.Equal(t, 100.0, breakdown.Base)
	assert.Equal(t, 20.0, breakdown.TravelPenalty)
	assert.Equal(t, 10.0, breakdown.LoadPenalty)
	assert.Equal(t, 10.0, breakdown.PreferenceBonus)
	assert.Equal(t, 80.0, total)
}

func TestCleanerScore_NoPreferenceBonus(t *testing.T) {
	weights := DefaultCleanerScoreWeights()
	total, breakdown := CleanerScore(weights, 0, 0, false)

	assert.Equal(t, 0.0, breakdown.PreferenceBonus)
	assert.Equal(t, 100.0, total)
}
