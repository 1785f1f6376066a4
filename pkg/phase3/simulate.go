// Package phase3 implements the per-cleaner scheduler: permutation-based
// sequencing of a cleaner's assigned groups into a single ordered timeline,
// with a per-group drop cascade resolving infeasibility.
package phase3

import (
	"cleanopt/pkg/domain"
	"cleanopt/pkg/geo"
	"cleanopt/pkg/priority"
)

// scheduleRow is the minute-based internal representation of a schedule
// row; Schedule converts each group's rows to domain.ScheduleRow (absolute
// time.Time) as soon as that group is scheduled.
type scheduleRow struct {
	taskID            int
	logisticCode      int
	sequence          int
	startMinute       int
	endMinute         int
	travelFromPrevMin int
	waitMinutes       int
	priority          domain.Priority
	priorityPenalty   float64
	reasons           []string
}

// simResult is the outcome of simulating one ordered sequence of tasks.
type simResult struct {
	order          []int
	rows           []scheduleRow
	feasible       bool
	failTaskID     int
	failReason     string
	endMinute      int
	totalPenalty   float64
	totalWaitMin   int
	totalTravelMin int
}

// simulate walks an ordered list of task IDs forward from a starting
// clock and the previous task's
// position (nil if this is the cleaner's first task of the day), compute
// each row in turn, aborting with TIME_WINDOW_IMPOSSIBLE at the first
// checkin-time violation.
func simulate(
	order []int,
	tasks map[int]domain.Task,
	startMinute int,
	prevCoord *domain.Coordinates,
	windows priority.Windows,
	startSequence int,
) simResult {
	result := simResult{order: order, feasible: true}
	current := startMinute
	prev := prevCoord

	for i, id := range order {
		t := tasks[id]

		travel := 0
		if prev != nil {
			travel = geo.EstimateTravelMinutes(*prev, t.Coordinates)
		}
		arrival := current + travel

		earliestStart := arrival
		if t.CheckoutMinute != nil && *t.CheckoutMinute > earliestStart {
			earliestStart = *t.CheckoutMinute
		}
		wait := earliestStart - arrival

		end := earliestStart + t.DurationMinutes
		if t.CheckinMinute != nil && end > *t.CheckinMinute {
			result.feasible = false
			result.failTaskID = id
			result.failReason = "TIME_WINDOW_IMPOSSIBLE"
			return result
		}

		penalty := priority.Penalty(windows, t.Priority, earliestStart)

		var reasons []string
		if penalty.ReasonCode != "" {
			reasons = append(reasons, penalty.ReasonCode)
		}

		row := scheduleRow{
			taskID:            id,
			logisticCode:      t.LogisticCode,
			sequence:          startSequence + i,
			startMinute:       earliestStart,
			endMinute:         end,
			travelFromPrevMin: travel,
			waitMinutes:       wait,
			priority:          t.Priority,
			priorityPenalty:   penalty.PenaltyValue,
			reasons:           reasons,
		}

		result.rows = append(result.rows, row)
		result.totalWaitMin += wait
		result.totalTravelMin += travel
		result.totalPenalty += penalty.PenaltyValue

		current = end
		coord := t.Coordinates
		prev = &coord
	}

	result.endMinute = current
	return result
}

// less implements the lexicographic comparison a best sequence must win by:
// earlier end_time, lower total_priority_penalty, lower total_wait, lower
// total_travel; ties broken on the lexicographically smaller task-id order.
func (r simResult) less(other simResult) bool {
	if r.endMinute != other.endMinute {
		return r.endMinute < other.endMinute
	}
	if r.totalPenalty != other.totalPenalty {
		return r.totalPenalty < other.totalPenalty
	}
	if r.totalWaitMin != other.totalWaitMin {
		return r.totalWaitMin < other.totalWaitMin
	}
	if r.totalTravelMin != other.totalTravelMin {
		return r.totalTravelMin < other.totalTravelMin
	}
	return lexLess(r.order, other.order)
}

func lexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
