package phase2

import (
	"context"
	"testing"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() config.Phase2Params {
	return config.Phase2Params{
		MaxCleanerLoad:  6,
		TravelWeight:    2,
		LoadWeight:      5,
		PreferenceBonus: 10,
		MaxRejectEvents: 3,
	}
}

func TestAssign_CompatibleGroupAssignedToSoleCleaner(t *testing.T) {
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, ApartmentType: domain.ApartmentA, DurationMinutes: 60},
		2: {ID: 2, LogisticCode: 2, ApartmentType: domain.ApartmentA, DurationMinutes: 60},
	}
	groups := []domain.CandidateGroup{{TaskIDs: []int{1, 2}, Score: 105}}
	cleaners := []domain.Cleaner{{ID: 10, Role: domain.RoleStandard, Contract: domain.ContractC}}

	sink := events.NewMemorySink()
	result, err := Assign(context.Background(), groups, cleaners, tasks, defaultParams(), sink)
	require.NoError(t, err)

	assert.Len(t, result.AssignmentsByCleaner[10], 1)
	assert.Empty(t, result.Unassigned)
}

func TestAssign_IncompatibleApartmentRejected(t *testing.T) {
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, ApartmentType: domain.ApartmentB, DurationMinutes: 60},
	}
	groups := []domain.CandidateGroup{{TaskIDs: []int{1}, Score: 100, IsSingle: true}}
	cleaners := []domain.Cleaner{{ID: 1, Contract: domain.ContractA}}

	sink := events.NewMemorySink()
	result, err := Assign(context.Background(), groups, cleaners, tasks, defaultParams(), sink)
	require.NoError(t, err)

	require.Len(t, result.Unassigned, 1)
	assert.Equal(t, 1, result.Unassigned[0].TaskID)

	var sawReject, sawUnassignedCandidate bool
	for _, e := range sink.Events {
		if e.EventType == domain.EventPhase2CleanerReject {
			sawReject = true
			assert.Equal(t, "CONTRACT_APT_MISMATCH_A_vs_B", e.Payload["reason"])
		}
		if e.EventType == domain.EventPhase2GroupUnassignedCandidate {
			sawUnassignedCandidate = true
		}
	}
	assert.True(t, sawReject)
	assert.True(t, sawUnassignedCandidate)
}

func TestAssign_DropCascadeOnPremiumTask(t *testing.T) {
	tasks := map[int]domain.Task{
		1: {ID: 1, LogisticCode: 1, ApartmentType: domain.ApartmentA, DurationMinutes: 60},
		2: {ID: 2, LogisticCode: 2, ApartmentType: domain.ApartmentA, DurationMinutes: 60},
		3: {ID: 3, LogisticCode: 3, ApartmentType: domain.ApartmentA, DurationMinutes: 60, Premium: true},
	}
	groups := []domain.CandidateGroup{{TaskIDs: []int{1, 2, 3}, Score: 100}}
	cleaners := []domain.Cleaner{{ID: 1, Role: domain.RoleStandard, Contract: domain.ContractC}}

	sink := events.NewMemorySink()
	result, err := Assign(context.Background(), groups, cleaners, tasks, defaultParams(), sink)
	require.NoError(t, err)

	require.Len(t, result.AssignmentsByCleaner[1], 1)
	assert.ElementsMatch(t, []int{1, 2}, result.AssignmentsByCleaner[1][0].Group.TaskIDs)

	require.Len(t, result.Unassigned, 1)
	assert.Equal(t, 3, result.Unassigned[0].TaskID)

	var sawDrop bool
	for _, e := range sink.Events {
		if e.EventType == domain.EventPhase2TaskDropped {
			sawDrop = true
			assert.Equal(t, 3, e.Payload["task_id"])
		}
	}
	assert.True(t, sawDrop)
}

func TestAssign_NoCleaners(t *testing.T) {
	tasks := map[int]domain.Task{1: {ID: 1, DurationMinutes: 60}}
	groups := []domain.CandidateGroup{{TaskIDs: []int{1}, IsSingle: true}}

	sink := events.NewMemorySink()
	result, err := Assign(context.Background(), groups, nil, tasks, defaultParams(), sink)
	require.NoError(t, err)

	require.Len(t, result.Unassigned, 1)
	assert.Equal(t, "NO_SELECTED_CLEANERS", result.Unassigned[0].ReasonCode)
}

func TestAssign_TaskNeverAssignedToTwoCleaners(t *testing.T) {
	tasks := map[int]domain.Task{
		1: {ID: 1, ApartmentType: domain.ApartmentA, DurationMinutes: 60},
	}
	groups := []domain.CandidateGroup{
		{TaskIDs: []int{1}, Score: 100, IsSingle: true},
		{TaskIDs: []int{1}, Score: 90, IsSingle: true},
	}
	cleaners := []domain.Cleaner{
		{ID: 1, Contract: domain.ContractC},
		{ID: 2, Contract: domain.ContractC},
	}

	sink := events.NewMemorySink()
	result, err := Assign(context.Background(), groups, cleaners, tasks, defaultParams(), sink)
	require.NoError(t, err)

	total := 0
	for _, assignments := range result.AssignmentsByCleaner {
		total += len(assignments)
	}
	assert.Equal(t, 1, total)
}
