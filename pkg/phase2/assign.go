package phase2

import (
	"context"
	"sort"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"
	"cleanopt/pkg/geo"
	"cleanopt/pkg/scoring"
)

// Assignment is one group bound to one cleaner, in the order Phase 2
// produced it (Phase 3 stitches a cleaner's groups in this order).
type Assignment struct {
	CleanerID int
	Group     domain.CandidateGroup
}

// Phase2Result is the outcome of a full Assign pass.
type Phase2Result struct {
	// AssignmentsByCleaner preserves per-cleaner assignment order.
	AssignmentsByCleaner map[int][]Assignment
	Unassigned           []domain.UnassignedTask
}

// state holds the two accumulator values Phase 2 threads explicitly rather
// than mutating package globals: cleaner_load and cleaner_last_position,
// both keyed by cleaner identifier.
type state struct {
	load         map[int]int
	lastPosition map[int]*domain.Coordinates
}

func newState(cleaners []domain.Cleaner) *state {
	s := &state{
		load:         make(map[int]int, len(cleaners)),
		lastPosition: make(map[int]*domain.Coordinates, len(cleaners)),
	}
	for _, c := range cleaners {
		s.load[c.ID] = 0
		if c.LastPosition != nil {
			pos := *c.LastPosition
			s.lastPosition[c.ID] = &pos
		}
	}
	return s
}

// Assign binds each candidate group to the best compatible cleaner,
// processing groups in the order given, applying a greedy non-overlap pre-filter and the
// iterative drop-hardest-task retry loop.
func Assign(
	ctx context.Context,
	groups []domain.CandidateGroup,
	cleaners []domain.Cleaner,
	tasks map[int]domain.Task,
	params config.Phase2Params,
	sink events.Sink,
) (Phase2Result, error) {
	result := Phase2Result{AssignmentsByCleaner: make(map[int][]Assignment)}

	if len(cleaners) == 0 {
		if len(groups) > 0 {
			sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2GroupUnassignedCandidate).
				With("reason", "NO_SELECTED_CLEANERS"))
		}
		for _, g := range groups {
			for _, id := range g.TaskIDs {
				emitUnassigned(sink, &result, tasks[id], "NO_SELECTED_CLEANERS")
			}
		}
		return result, nil
	}

	st := newState(cleaners)
	usedTasks := make(map[int]bool)

	for _, g := range groups {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if groupOverlapsUsed(g, usedTasks) {
			continue
		}

		assignGroup(g, cleaners, tasks, st, params, sink, &result, usedTasks)
	}

	return result, nil
}

func groupOverlapsUsed(g domain.CandidateGroup, usedTasks map[int]bool) bool {
	for _, id := range g.TaskIDs {
		if usedTasks[id] {
			return true
		}
	}
	return false
}

// assignGroup implements the per-group selection loop, mutating
// ids down via the drop cascade until either a cleaner accepts the
// (possibly reduced) group or nothing remains.
func assignGroup(
	g domain.CandidateGroup,
	cleaners []domain.Cleaner,
	tasks map[int]domain.Task,
	st *state,
	params config.Phase2Params,
	sink events.Sink,
	result *Phase2Result,
	usedTasks map[int]bool,
) {
	ids := append([]int(nil), g.TaskIDs...)
	retryCount := 0

	for {
		groupTasks := taskSlice(ids, tasks)

		compatible, rejectByCleanerID := compatibleCleaners(groupTasks, cleaners, st, params.MaxCleanerLoad)
		emitTopRejectEvents(sink, rejectByCleanerID, params.MaxRejectEvents)

		if len(compatible) > 0 {
			winner, score, breakdown, travel := pickBestCleaner(groupTasks, compatible, st, params)
			emitTopCandidateEvents(sink, groupTasks, compatible, st, params)

			for _, id := range ids {
				usedTasks[id] = true
			}
			st.load[winner.ID] += len(ids)
			last := lastTaskCoordinates(ids, tasks)
			st.lastPosition[winner.ID] = &last

			assigned := domain.CandidateGroup{
				TaskIDs:      ids,
				SeedID:       g.SeedID,
				Zone:         g.Zone,
				AvgTravelMin: g.AvgTravelMin,
				MaxTravelMin: g.MaxTravelMin,
				Score:        g.Score,
				IsSingle:     len(ids) == 1,
			}
			result.AssignmentsByCleaner[winner.ID] = append(result.AssignmentsByCleaner[winner.ID], Assignment{
				CleanerID: winner.ID,
				Group:     assigned,
			})

			sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2GroupAssigned).
				With("cleaner_id", winner.ID).
				With("task_ids", ids).
				With("score", score).
				With("travel_from_last_min", travel).
				With("breakdown", breakdown))
			return
		}

		if len(ids) == 1 {
			sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2GroupUnassignedCandidate).
				With("task_ids", ids))
			emitUnassigned(sink, result, tasks[ids[0]], "NO_COMPATIBLE_CLEANER")
			return
		}

		dropID, reason := mostExpensiveTask(ids, tasks, cleaners, st, params.MaxCleanerLoad)
		retained := removeID(ids, dropID)

		sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2TaskDropped).
			With("task_id", dropID).
			With("retained_task_ids", retained).
			With("reason", reason).
			With("retry_count", retryCount))
		emitUnassigned(sink, result, tasks[dropID], reason)

		ids = retained
		retryCount++
	}
}

func taskSlice(ids []int, tasks map[int]domain.Task) []domain.Task {
	out := make([]domain.Task, len(ids))
	for i, id := range ids {
		out[i] = tasks[id]
	}
	return out
}

func lastTaskCoordinates(ids []int, tasks map[int]domain.Task) domain.Coordinates {
	last := ids[len(ids)-1]
	return tasks[last].Coordinates
}

func removeID(ids []int, drop int) []int {
	out := make([]int, 0, len(ids)-1)
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// compatibleCleaners returns the cleaners below max load that pass the
// full-group compatibility check, plus every evaluated cleaner's reject
// reasons (for cleaners that failed, whether on load or compatibility).
func compatibleCleaners(
	groupTasks []domain.Task,
	cleaners []domain.Cleaner,
	st *state,
	maxLoad int,
) ([]domain.Cleaner, map[int][]RejectReason) {
	var compatible []domain.Cleaner
	rejectByCleanerID := make(map[int][]RejectReason)

	for _, c := range cleaners {
		if st.load[c.ID] >= maxLoad {
			rejectByCleanerID[c.ID] = []RejectReason{{Code: "CLEANER_AT_MAX_LOAD"}}
			continue
		}
		ok, reasons := groupCompatible(groupTasks, c)
		if ok {
			compatible = append(compatible, c)
		} else {
			rejectByCleanerID[c.ID] = reasons
		}
	}

	sort.Slice(compatible, func(i, j int) bool { return compatible[i].ID < compatible[j].ID })
	return compatible, rejectByCleanerID
}

func emitTopRejectEvents(sink events.Sink, rejectByCleanerID map[int][]RejectReason, limit int) {
	counts := make(map[string]int)
	for _, reasons := range rejectByCleanerID {
		for _, r := range reasons {
			counts[r.Code]++
		}
	}
	if len(counts) == 0 {
		return
	}

	type codeCount struct {
		code  string
		count int
	}
	ranked := make([]codeCount, 0, len(counts))
	for code, n := range counts {
		ranked = append(ranked, codeCount{code, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].code < ranked[j].code
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for _, rc := range ranked {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2CleanerReject).
			With("reason", rc.code).
			With("cleaner_count", rc.count))
	}
}

func pickBestCleaner(
	groupTasks []domain.Task,
	compatible []domain.Cleaner,
	st *state,
	params config.Phase2Params,
) (domain.Cleaner, float64, scoring.ScoreBreakdown, int) {
	weights := scoring.CleanerScoreWeights{
		Travel:          params.TravelWeight,
		Load:            params.LoadWeight,
		PreferenceBonus: params.PreferenceBonus,
	}

	type scored struct {
		cleaner   domain.Cleaner
		score     float64
		breakdown scoring.ScoreBreakdown
		travel    int
	}

	results := make([]scored, len(compatible))
	for i, c := range compatible {
		travel := travelFromLast(groupTasks, st.lastPosition[c.ID])
		preferred := anyClientPreferred(groupTasks, c)
		score, breakdown := scoring.CleanerScore(weights, travel, st.load[c.ID], preferred)
		results[i] = scored{cleaner: c, score: score, breakdown: breakdown, travel: travel}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if st.load[results[i].cleaner.ID] != st.load[results[j].cleaner.ID] {
			return st.load[results[i].cleaner.ID] < st.load[results[j].cleaner.ID]
		}
		return results[i].cleaner.ID < results[j].cleaner.ID
	})

	best := results[0]
	return best.cleaner, best.score, best.breakdown, best.travel
}

func emitTopCandidateEvents(sink events.Sink, groupTasks []domain.Task, compatible []domain.Cleaner, st *state, params config.Phase2Params) {
	weights := scoring.CleanerScoreWeights{
		Travel:          params.TravelWeight,
		Load:            params.LoadWeight,
		PreferenceBonus: params.PreferenceBonus,
	}

	type candidate struct {
		cleanerID int
		score     float64
		travel    int
		load      int
		preferred bool
		breakdown scoring.ScoreBreakdown
	}

	candidates := make([]candidate, len(compatible))
	for i, c := range compatible {
		travel := travelFromLast(groupTasks, st.lastPosition[c.ID])
		preferred := anyClientPreferred(groupTasks, c)
		score, breakdown := scoring.CleanerScore(weights, travel, st.load[c.ID], preferred)
		candidates[i] = candidate{cleanerID: c.ID, score: score, travel: travel, load: st.load[c.ID], preferred: preferred, breakdown: breakdown}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].cleanerID < candidates[j].cleanerID
	})

	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	for _, c := range candidates {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase2, domain.EventPhase2CleanerCandidate).
			With("cleaner_id", c.cleanerID).
			With("score", c.score).
			With("travel_from_last_min", c.travel).
			With("current_load", c.load).
			With("preferred", c.preferred).
			With("breakdown", c.breakdown))
	}
}

func travelFromLast(groupTasks []domain.Task, last *domain.Coordinates) int {
	if last == nil {
		return 0
	}
	first := groupTasks[0].Coordinates
	return geo.EstimateTravelMinutes(*last, first)
}

func anyClientPreferred(groupTasks []domain.Task, c domain.Cleaner) bool {
	for _, t := range groupTasks {
		if c.PrefersClient(t.ClientID) {
			return true
		}
	}
	return false
}

// mostExpensiveTask finds the task whose removal maximizes the number of
// cleaners that would accept the remaining subgroup, tie-broken on the
// task most widely incompatible overall.
func mostExpensiveTask(
	ids []int,
	tasks map[int]domain.Task,
	cleaners []domain.Cleaner,
	st *state,
	maxLoad int,
) (int, string) {
	type candidate struct {
		taskID        int
		acceptorCount int
		rejectTotal   int
		lowCompat     bool
	}

	best := candidate{taskID: ids[0], acceptorCount: -1}

	for _, dropID := range ids {
		remaining := removeID(ids, dropID)
		remainingTasks := taskSlice(remaining, tasks)

		acceptors := 0
		for _, c := range cleaners {
			if st.load[c.ID] >= maxLoad {
				continue
			}
			if ok, _ := groupCompatible(remainingTasks, c); ok {
				acceptors++
			}
		}

		rejectTotal := 0
		rejectingCleaners := 0
		for _, c := range cleaners {
			_, reasons := groupCompatible([]domain.Task{tasks[dropID]}, c)
			rejectTotal += len(reasons)
			if len(reasons) > 0 {
				rejectingCleaners++
			}
		}
		lowCompat := rejectingCleaners == len(cleaners) && len(cleaners) > 0

		if acceptors > best.acceptorCount ||
			(acceptors == best.acceptorCount && rejectTotal > best.rejectTotal) {
			best = candidate{taskID: dropID, acceptorCount: acceptors, rejectTotal: rejectTotal, lowCompat: lowCompat}
		}
	}

	reason := "REDUCES_GROUP_COMPATIBILITY"
	if best.lowCompat {
		reason = "LOW_CLEANER_COMPATIBILITY"
	}
	return best.taskID, reason
}

func emitUnassigned(sink events.Sink, result *Phase2Result, t domain.Task, reason string) {
	result.Unassigned = append(result.Unassigned, domain.UnassignedTask{
		TaskID:       t.ID,
		LogisticCode: t.LogisticCode,
		ReasonCode:   reason,
	})
}
