package geo

import (
	"testing"

	"cleanopt/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTravelMinutes_ReflexiveClampsToOne(t *testing.T) {
	p := domain.Coordinates{Lat: 45.4642, Lon: 9.1900}
	assert.Equal(t, 1, EstimateTravelMinutes(p, p))
}

func TestEstimateTravelMinutes_Symmetric(t *testing.T) {
	a := domain.Coordinates{Lat: 45.4642, Lon: 9.1900}
	b := domain.Coordinates{Lat: 45.5, Lon: 9.25}

	require.Equal(t, EstimateTravelMinutes(a, b), EstimateTravelMinutes(b, a))
}

func TestEstimateTravelMinutes_KnownDistance(t *testing.T) {
	// Roughly 6.2km apart at this latitude band -> ~20-21 minutes at 18km/h.
	a := domain.Coordinates{Lat: 45.4642, Lon: 9.1900}
	b := domain.Coordinates{Lat: 45.5200, Lon: 9.1900}

	got := EstimateTravelMinutes(a, b)
	assert.Greater(t, got, 15)
	assert.Less(t, got, 30)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 3.0, roundHalfAwayFromZero(2.5))
	assert.Equal(t, -3.0, roundHalfAwayFromZero(-2.5))
	assert.Equal(t, 2.0, roundHalfAwayFromZero(2.4))
}
