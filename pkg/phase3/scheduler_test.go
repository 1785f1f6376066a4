package phase3

import (
	"context"
	"testing"
	"time"

	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"
	"cleanopt/pkg/priority"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindows() priority.Windows {
	return priority.Windows{
		EO: priority.Window{Start: 600, End: intPtr(659), Grace: 15, K: 2, Cap: 120},
		HP: priority.Window{Start: 660, End: intPtr(930), Grace: 15, K: 1, Cap: 90},
		LP: priority.Window{Start: 660, Grace: 15, K: 1, Cap: 60},
	}
}

func intPtr(v int) *int { return &v }

func TestSchedule_TwoTasksSameBuilding(t *testing.T) {
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, Coordinates: domain.Coordinates{Lat: 45.46, Lon: 9.19}, DurationMinutes: 60},
		2: {ID: 2, LogisticCode: 2, Coordinates: domain.Coordinates{Lat: 45.46, Lon: 9.19}, DurationMinutes: 60},
	}
	cleaner := domain.Cleaner{ID: 1, DayStartMinute: 9 * 60}
	workDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	sink := events.NewMemorySink()
	result, err := Schedule(context.Background(), workDate, cleaner, [][]int{{1, 2}}, tasks, testWindows(), sink)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Rows[0].Sequence)
	assert.Equal(t, 2, result.Rows[1].Sequence)
	assert.True(t, result.Rows[1].Start.Equal(result.Rows[0].End) || result.Rows[1].Start.After(result.Rows[0].End))
	assert.Empty(t, result.Dropped)
}

func TestSchedule_CheckinViolationDropsTask(t *testing.T) {
	checkin := 600 // 10:00
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, Coordinates: domain.Coordinates{Lat: 45.46, Lon: 9.19}, DurationMinutes: 90, CheckinMinute: &checkin},
	}
	cleaner := domain.Cleaner{ID: 1, DayStartMinute: 9 * 60}
	workDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	sink := events.NewMemorySink()
	result, err := Schedule(context.Background(), workDate, cleaner, [][]int{{1}}, tasks, testWindows(), sink)
	require.NoError(t, err)

	assert.Empty(t, result.Rows)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, "ALL_PERMUTATIONS_FAILED", result.Dropped[0].ReasonCode)
}

func TestSchedule_DropCascadeRetainsFeasibleSubset(t *testing.T) {
	checkin := 600
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, Coordinates: domain.Coordinates{Lat: 45.46, Lon: 9.19}, DurationMinutes: 90, CheckinMinute: &checkin},
		2: {ID: 2, LogisticCode: 2, Coordinates: domain.Coordinates{Lat: 45.46, Lon: 9.19}, DurationMinutes: 60},
	}
	cleaner := domain.Cleaner{ID: 1, DayStartMinute: 9 * 60}
	workDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	sink := events.NewMemorySink()
	result, err := Schedule(context.Background(), workDate, cleaner, [][]int{{1, 2}}, tasks, testWindows(), sink)
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, 2, result.Rows[0].TaskID)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, 1, result.Dropped[0].TaskID)
}

func TestSchedule_NoGroups(t *testing.T) {
	cleaner := domain.Cleaner{ID: 1, DayStartMinute: 540}
	workDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	sink := events.NewMemorySink()
	result, err := Schedule(context.Background(), workDate, cleaner, nil, map[int]domain.Task{}, testWindows(), sink)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)

	require.Len(t, sink.Events, 1)
	assert.Equal(t, domain.EventPhase3NoPhase2Assignments, sink.Events[0].EventType)
}

func TestPermutations_Count(t *testing.T) {
	perms := permutations([]int{1, 2, 3})
	assert.Len(t, perms, 6)
}

func TestSubsetsBySizeDescending(t *testing.T) {
	subsets := subsetsBySizeDescending([]int{1, 2, 3})
	// size 2: 3 subsets, size 1: 3 subsets
	assert.Len(t, subsets, 6)
}
