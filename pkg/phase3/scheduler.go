package phase3

import (
	"context"
	"time"

	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"
	"cleanopt/pkg/priority"
)

// Phase3Result is the outcome of scheduling one cleaner's day.
type Phase3Result struct {
	Rows    []domain.ScheduleRow
	Dropped []domain.UnassignedTask
}

// Schedule stitches a cleaner's Phase 2 groups, in the order given, into a
// single ordered timeline. Each group
// is scheduled independently via scheduleGroup; a group's drop cascade
// never affects sibling groups, and the global sequence counter advances
// across groups.
func Schedule(
	ctx context.Context,
	workDate time.Time,
	cleaner domain.Cleaner,
	groupTaskIDs [][]int,
	tasks map[int]domain.Task,
	windows priority.Windows,
	sink events.Sink,
) (Phase3Result, error) {
	result := Phase3Result{}

	if len(groupTaskIDs) == 0 {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase3, domain.EventPhase3NoPhase2Assignments).
			With("cleaner_id", cleaner.ID))
		return result, nil
	}

	current := cleaner.DayStartMinute
	var prevCoord *domain.Coordinates
	seq := 1

	for _, ids := range groupTaskIDs {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		attempt := scheduleGroup(ids, tasks, current, prevCoord, windows, seq)

		if attempt.allFailed {
			sink.Emit(domain.NewDecisionEvent("", domain.Phase3, domain.EventPhase3TaskUnassignedFinal).
				With("cleaner_id", cleaner.ID).
				With("task_ids", ids).
				With("reason", "ALL_PERMUTATIONS_FAILED").
				With("permutations_checked", attempt.permutationCount))
			for _, id := range ids {
				result.Dropped = append(result.Dropped, domain.UnassignedTask{
					TaskID:       id,
					LogisticCode: tasks[id].LogisticCode,
					ReasonCode:   "ALL_PERMUTATIONS_FAILED",
					Details: map[string]any{
						"cleaner_id":           cleaner.ID,
						"group":                ids,
						"permutations_checked": attempt.permutationCount,
					},
				})
			}
			continue
		}

		for _, r := range attempt.rows {
			result.Rows = append(result.Rows, toDomainRow(workDate, r))
		}
		seq += len(attempt.rows)
		current = attempt.endMinute
		if attempt.nextPrevCoord != nil {
			prevCoord = attempt.nextPrevCoord
		}

		if len(attempt.dropped) > 0 {
			sink.Emit(domain.NewDecisionEvent("", domain.Phase3, domain.EventPhase3TaskDroppedTime).
				With("cleaner_id", cleaner.ID).
				With("task_ids", attempt.dropped).
				With("retained_task_ids", difference(ids, attempt.dropped)).
				With("permutations_checked", attempt.permutationCount))
			for _, id := range attempt.dropped {
				result.Dropped = append(result.Dropped, domain.UnassignedTask{
					TaskID:       id,
					LogisticCode: tasks[id].LogisticCode,
					ReasonCode:   "TIME_WINDOW_IMPOSSIBLE",
					Details: map[string]any{
						"cleaner_id":           cleaner.ID,
						"group":                ids,
						"permutations_checked": attempt.permutationCount,
					},
				})
			}
		}

		sink.Emit(domain.NewDecisionEvent("", domain.Phase3, domain.EventPhase3GroupScheduled).
			With("cleaner_id", cleaner.ID).
			With("task_ids", ids).
			With("dropped_task_ids", attempt.dropped).
			With("permutations_checked", attempt.permutationCount))
	}

	return result, nil
}

func toDomainRow(workDate time.Time, r scheduleRow) domain.ScheduleRow {
	return domain.ScheduleRow{
		TaskID:            r.taskID,
		LogisticCode:      r.logisticCode,
		Sequence:          r.sequence,
		Start:             minuteToTime(workDate, r.startMinute),
		End:               minuteToTime(workDate, r.endMinute),
		TravelFromPrevMin: r.travelFromPrevMin,
		WaitMinutes:       r.waitMinutes,
		Priority:          r.priority,
		PriorityPenalty:   r.priorityPenalty,
		Reasons:           r.reasons,
	}
}

func minuteToTime(workDate time.Time, minute int) time.Time {
	return time.Date(workDate.Year(), workDate.Month(), workDate.Day(), 0, 0, 0, 0, workDate.Location()).
		Add(time.Duration(minute) * time.Minute)
}
