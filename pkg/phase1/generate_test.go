package phase1

import (
	"context"
	"testing"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskAt(id int, lat, lon float64) domain.Task {
	return domain.Task{
		ID:              id,
		LogisticCode:    id,
		Coordinates:     domain.Coordinates{Lat: lat, Lon: lon},
		DurationMinutes: 60,
		ApartmentType:   domain.ApartmentA,
	}
}

func TestGenerate_SameBuildingPair(t *testing.T) {
	tasks := []domain.Task{
		taskAt(1, 45.4642, 9.1900),
		taskAt(2, 45.4642, 9.1900),
	}
	sink := events.NewMemorySink()

	groups, err := Generate(context.Background(), tasks, config.Phase1Params{
		MaxApts: 3, AllowFourthIfTravelLEMin: 5, NeighborLimit: 15,
		NearbySeedMaxMin: 12, FallbackSeedMaxMin: 20, MaxGroupsTotal: 3000,
		UseAdjacentZones: true,
	}, sink)

	require.NoError(t, err)
	require.NotEmpty(t, groups)

	found := false
	for _, g := range groups {
		if len(g.TaskIDs) == 2 {
			assert.Equal(t, []int{1, 2}, g.TaskIDs)
			assert.InDelta(t, 105.0, g.Score, 0.01)
			found = true
		}
	}
	assert.True(t, found, "expected a pair group for two same-building tasks")
}

func TestGenerate_EmptyTasks(t *testing.T) {
	sink := events.NewMemorySink()
	groups, err := Generate(context.Background(), nil, config.Phase1Params{}, sink)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Empty(t, sink.Events)
}

func TestGenerate_SingletonFallbackWhenNoNeighbor(t *testing.T) {
	tasks := []domain.Task{
		taskAt(1, 45.0, 9.0),
		taskAt(2, 50.0, 14.0), // far away, different zone, no adjacency
	}
	sink := events.NewMemorySink()

	groups, err := Generate(context.Background(), tasks, config.Phase1Params{
		MaxApts: 3, AllowFourthIfTravelLEMin: 5, NeighborLimit: 15,
		NearbySeedMaxMin: 12, FallbackSeedMaxMin: 20, MaxGroupsTotal: 3000,
		UseAdjacentZones: true,
	}, sink)

	require.NoError(t, err)
	for _, g := range groups {
		assert.True(t, g.IsSingle)
		assert.Len(t, g.TaskIDs, 1)
	}

	var sawSingle bool
	for _, e := range sink.Events {
		if e.EventType == domain.EventPhase1GroupSingleCreated {
			sawSingle = true
		}
	}
	assert.True(t, sawSingle)
}

func TestGenerate_GroupsAreSortedAndDistinct(t *testing.T) {
	tasks := []domain.Task{
		taskAt(1, 45.4642, 9.1900),
		taskAt(2, 45.4643, 9.1901),
		taskAt(3, 45.4644, 9.1902),
	}
	sink := events.NewMemorySink()

	groups, err := Generate(context.Background(), tasks, config.Phase1Params{
		MaxApts: 3, AllowFourthIfTravelLEMin: 5, NeighborLimit: 15,
		NearbySeedMaxMin: 12, FallbackSeedMaxMin: 20, MaxGroupsTotal: 3000,
		UseAdjacentZones: true,
	}, sink)
	require.NoError(t, err)

	for _, g := range groups {
		ids := append([]int(nil), g.TaskIDs...)
		assert.True(t, sortedAscendingDistinct(ids), "group %v must be sorted and distinct (P1)", ids)
	}

	for i := 1; i < len(groups); i++ {
		assert.GreaterOrEqual(t, groups[i-1].Score, groups[i].Score)
	}
}

func TestGenerate_FourthApartmentAllowedWhenCloseEnough(t *testing.T) {
	tasks := []domain.Task{
		taskAt(1, 45.4642, 9.1900),
		taskAt(2, 45.4642, 9.1900),
		taskAt(3, 45.4642, 9.1900),
		taskAt(4, 45.4642, 9.1900),
	}
	sink := events.NewMemorySink()

	groups, err := Generate(context.Background(), tasks, config.Phase1Params{
		MaxApts: 3, AllowFourthIfTravelLEMin: 5, NeighborLimit: 15,
		NearbySeedMaxMin: 12, FallbackSeedMaxMin: 20, MaxGroupsTotal: 3000,
		UseAdjacentZones: true,
	}, sink)

	require.NoError(t, err)

	found := false
	for _, g := range groups {
		if len(g.TaskIDs) == 4 {
			found = true
		}
	}
	assert.True(t, found, "expected a group of 4 when the fourth apartment is within AllowFourthIfTravelLEMin of every other member, despite MaxApts=3")
}

func sortedAscendingDistinct(ids []int) bool {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return false
		}
	}
	return true
}
