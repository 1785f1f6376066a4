package phase3

import (
	"sort"

	"cleanopt/pkg/domain"
	"cleanopt/pkg/priority"
)

// groupAttempt is the outcome of scheduling one group, possibly after a
// drop cascade.
type groupAttempt struct {
	rows             []scheduleRow
	dropped          []int
	permutationCount int
	endMinute        int
	nextPrevCoord    *domain.Coordinates
	allFailed        bool
}

// scheduleGroup enumerates permutations, keeps the best feasible one by
// lexicographic comparison, and otherwise cascades through single-task,
// then pairwise, drops until a feasible subset is found or every
// non-empty subset has failed.
func scheduleGroup(
	ids []int,
	tasks map[int]domain.Task,
	startMinute int,
	prevCoord *domain.Coordinates,
	windows priority.Windows,
	startSequence int,
) groupAttempt {
	checked := 0

	best, ok := bestPermutation(ids, tasks, startMinute, prevCoord, windows, startSequence, &checked)
	if ok {
		return attemptFromResult(best, nil, checked, tasks)
	}

	for _, subset := range subsetsBySizeDescending(ids) {
		sorted := append([]int(nil), subset...)
		sort.Ints(sorted)

		best, ok := bestPermutation(sorted, tasks, startMinute, prevCoord, windows, startSequence, &checked)
		if ok {
			dropped := difference(ids, sorted)
			return attemptFromResult(best, dropped, checked, tasks)
		}
	}

	return groupAttempt{dropped: append([]int(nil), ids...), permutationCount: checked, allFailed: true}
}

func bestPermutation(
	ids []int,
	tasks map[int]domain.Task,
	startMinute int,
	prevCoord *domain.Coordinates,
	windows priority.Windows,
	startSequence int,
	checked *int,
) (simResult, bool) {
	var best simResult
	found := false

	for _, perm := range permutations(ids) {
		*checked++
		res := simulate(perm, tasks, startMinute, prevCoord, windows, startSequence)
		if !res.feasible {
			continue
		}
		if !found || res.less(best) {
			best = res
			found = true
		}
	}

	return best, found
}

func attemptFromResult(res simResult, dropped []int, checked int, tasks map[int]domain.Task) groupAttempt {
	var nextPrev *domain.Coordinates
	if len(res.order) > 0 {
		last := res.order[len(res.order)-1]
		coord := tasks[last].Coordinates
		nextPrev = &coord
	}

	return groupAttempt{
		rows:             res.rows,
		dropped:          dropped,
		permutationCount: checked,
		endMinute:        res.endMinute,
		nextPrevCoord:    nextPrev,
	}
}

func difference(all, subset []int) []int {
	present := make(map[int]bool, len(subset))
	for _, id := range subset {
		present[id] = true
	}
	var out []int
	for _, id := range all {
		if !present[id] {
			out = append(out, id)
		}
	}
	return out
}
