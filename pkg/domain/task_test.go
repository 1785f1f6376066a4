package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulable_PositiveDurationFiniteCoordinates(t *testing.T) {
	task := Task{DurationMinutes: 60, Coordinates: Coordinates{Lat: 45.46, Lon: 9.19}}
	assert.True(t, task.Schedulable())
}

func TestSchedulable_NonPositiveDuration(t *testing.T) {
	task := Task{DurationMinutes: 0, Coordinates: Coordinates{Lat: 45.46, Lon: 9.19}}
	assert.False(t, task.Schedulable())
}

func TestSchedulable_NaNCoordinateRejected(t *testing.T) {
	task := Task{DurationMinutes: 60, Coordinates: Coordinates{Lat: math.NaN(), Lon: 9.19}}
	assert.False(t, task.Schedulable())
}

func TestSchedulable_InfCoordinateRejected(t *testing.T) {
	task := Task{DurationMinutes: 60, Coordinates: Coordinates{Lat: 45.46, Lon: math.Inf(1)}}
	assert.False(t, task.Schedulable())
}
