package domain

import "time"

// ScheduleRow is a single task placement within a cleaner's day, emitted by
// Phase 3.
type ScheduleRow struct {
	TaskID       int
	LogisticCode int
	// Sequence is the 1-based position within the cleaner's day.
	Sequence int
	Start    time.Time
	End      time.Time
	// TravelFromPrevMin is the travel minutes from the previous task in the
	// cleaner's day (0 for the first row).
	TravelFromPrevMin int
	WaitMinutes       int
	Priority          Priority
	PriorityPenalty   float64
	Reasons           []string
}

// UnassignedTask records a task that never became part of a feasible
// schedule, with the reason it was dropped.
type UnassignedTask struct {
	TaskID       int
	LogisticCode int
	ReasonCode   string
	Details      map[string]any
}
