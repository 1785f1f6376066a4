package geo

import (
	"testing"

	"cleanopt/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func TestZoneOf_SameCellSameZone(t *testing.T) {
	a := domain.Coordinates{Lat: 45.461, Lon: 9.191}
	b := domain.Coordinates{Lat: 45.462, Lon: 9.192}

	za, ok := ZoneOf(a)
	assert.True(t, ok)
	zb, ok := ZoneOf(b)
	assert.True(t, ok)
	assert.Equal(t, za, zb)
}

func TestZoneOf_Unmapped(t *testing.T) {
	_, ok := ZoneOf(domain.Coordinates{Lat: 1000, Lon: 0})
	assert.False(t, ok)
}

func TestAdjacentZones_NeverIncludesSelf(t *testing.T) {
	z, ok := ZoneOf(domain.Coordinates{Lat: 45.46, Lon: 9.19})
	assert.True(t, ok)

	for _, n := range AdjacentZones(z) {
		assert.NotEqual(t, z, n)
	}
}

func TestAdjacentZones_UnmappedHasNoNeighbors(t *testing.T) {
	assert.Empty(t, AdjacentZones(domain.ZoneUnmapped))
}
