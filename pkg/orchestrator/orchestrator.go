// Package orchestrator wires phases 1 through 3 into a single run and owns
// the run lifecycle: record creation, decision-event batching, and the
// run's single terminal status update.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"
	"cleanopt/pkg/phase1"
	"cleanopt/pkg/phase2"
	"cleanopt/pkg/phase3"
	"cleanopt/pkg/priority"
	"cleanopt/pkg/storage"

	"github.com/google/uuid"
)

// parallelCleanerThreshold mirrors pkg/phase1's worker-pool threshold:
// below it, scheduling cleaners sequentially is cheaper than paying for
// goroutine setup.
const parallelCleanerThreshold = 10

// RunInput is the task/cleaner/params bundle a run is invoked with.
type RunInput struct {
	WorkDate         string
	AlgorithmVersion string
	Tasks            []domain.Task
	Cleaners         []domain.Cleaner
}

// RunResult is everything RunOnce produces for a single invocation.
type RunResult struct {
	RunID   string
	Status  domain.RunStatus
	Summary domain.RunSummary
}

// Orchestrator wires phases 1-3 to the storage ports and a decision-event
// sink, taking its collaborators by interface at construction time.
type Orchestrator struct {
	runs       storage.RunStore
	decisions  storage.DecisionSink
	workspaces storage.WorkspaceStore
	config     *config.Config
	logger     *slog.Logger
}

func New(runs storage.RunStore, decisions storage.DecisionSink, workspaces storage.WorkspaceStore, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{runs: runs, decisions: decisions, workspaces: workspaces, config: cfg, logger: logger}
}

// RunOnce executes the full three-phase pipeline for one input bundle,
// from run creation through the single terminal status update.
func (o *Orchestrator) RunOnce(ctx context.Context, input RunInput) (RunResult, error) {
	started := time.Now()
	runID := uuid.New().String()

	run := domain.Run{
		RunID:            runID,
		WorkDate:         input.WorkDate,
		AlgorithmVersion: input.AlgorithmVersion,
		ParamsSnapshot:   o.paramsSnapshot(),
		Status:           domain.RunPending,
		CreatedAt:        started,
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("creating run: %w", err)
	}

	if o.workspaces != nil {
		_ = o.workspaces.SaveWorkspace(ctx, input.WorkDate, map[string]any{
			"task_count":    len(input.Tasks),
			"cleaner_count": len(input.Cleaners),
			"tasks":         input.Tasks,
			"cleaners":      input.Cleaners,
			"params":        run.ParamsSnapshot,
		})
	}

	batching := events.NewMemorySink()
	sink := events.NewRunScopedSink(runID, batching)

	windows, fallbacks := priority.LoadWindows(o.config.Windows)
	for _, fb := range fallbacks {
		sink.Emit(domain.NewDecisionEvent(runID, domain.Phase3, domain.EventPhase3SettingsFallbackUsed).
			With("priority", fb.Priority).
			With("reason", fb.Reason))
	}

	summary := domain.RunSummary{TasksLoaded: len(input.Tasks)}

	// No tasks at all is a trivial success with an empty schedule, not a
	// failure.
	if len(input.Tasks) == 0 {
		summary.DurationMillis = time.Since(started).Milliseconds()
		return o.finish(ctx, runID, domain.RunSuccess, summary, batching.Events)
	}

	groups, err := phase1.Generate(ctx, input.Tasks, o.config.Phase1, sink)
	if err != nil {
		summary.DurationMillis = time.Since(started).Milliseconds()
		summary.FailureReason = fmt.Sprintf("phase1: %v", err)
		return o.finish(ctx, runID, domain.RunFailed, summary, batching.Events)
	}
	summary.GroupsGenerated = len(groups)

	tasksByID := make(map[int]domain.Task, len(input.Tasks))
	for _, t := range input.Tasks {
		tasksByID[t.ID] = t
	}

	assignResult, err := phase2.Assign(ctx, groups, input.Cleaners, tasksByID, o.config.Phase2, sink)
	if err != nil {
		summary.DurationMillis = time.Since(started).Milliseconds()
		summary.FailureReason = fmt.Sprintf("phase2: %v", err)
		return o.finish(ctx, runID, domain.RunFailed, summary, batching.Events)
	}
	summary.GroupsAssigned = countAssignedGroups(assignResult.AssignmentsByCleaner)

	workDate, err := time.Parse("2006-01-02", input.WorkDate)
	if err != nil {
		workDate = started
	}

	cleanerByID := make(map[int]domain.Cleaner, len(input.Cleaners))
	for _, c := range input.Cleaners {
		cleanerByID[c.ID] = c
	}

	rows, unassigned, cleanerIDByTask, err := o.scheduleCleaners(ctx, workDate, assignResult, cleanerByID, tasksByID, windows, sink)
	if err != nil {
		summary.DurationMillis = time.Since(started).Milliseconds()
		summary.FailureReason = fmt.Sprintf("phase3: %v", err)
		return o.finish(ctx, runID, domain.RunFailed, summary, batching.Events)
	}

	allUnassigned := append(append([]domain.UnassignedTask(nil), assignResult.Unassigned...), unassigned...)
	summary.TasksScheduled = len(rows)
	summary.TasksUnassigned = len(allUnassigned)
	summary.DurationMillis = time.Since(started).Milliseconds()

	if err := o.runs.SaveAssignments(ctx, runID, rows, cleanerIDByTask); err != nil {
		return RunResult{}, fmt.Errorf("saving assignments for run %s: %w", runID, err)
	}
	if len(allUnassigned) > 0 {
		if err := o.runs.SaveUnassigned(ctx, runID, allUnassigned); err != nil {
			return RunResult{}, fmt.Errorf("saving unassigned tasks for run %s: %w", runID, err)
		}
	}

	status := domain.RunSuccess
	if len(allUnassigned) > 0 {
		status = domain.RunPartial
	}
	return o.finish(ctx, runID, status, summary, batching.Events)
}

func (o *Orchestrator) paramsSnapshot() map[string]any {
	return map[string]any{
		"phase1": o.config.Phase1,
		"phase2": o.config.Phase2,
		"phase3": o.config.Phase3,
		"windows": o.config.Windows,
	}
}

func countAssignedGroups(byCleaner map[int][]phase2.Assignment) int {
	n := 0
	for _, assignments := range byCleaner {
		n += len(assignments)
	}
	return n
}

// scheduleCleaners runs Phase 3 once per cleaner with assignments,
// parallelized via a bounded worker pool once the cleaner count passes
// parallelCleanerThreshold, using the same worker-pool shape as
// pkg/phase1's forEachSeed.
func (o *Orchestrator) scheduleCleaners(
	ctx context.Context,
	workDate time.Time,
	assignResult phase2.Phase2Result,
	cleanerByID map[int]domain.Cleaner,
	tasksByID map[int]domain.Task,
	windows priority.Windows,
	sink events.Sink,
) ([]domain.ScheduleRow, []domain.UnassignedTask, map[int]int, error) {
	if len(assignResult.AssignmentsByCleaner) == 0 {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase3, domain.EventPhase3NoPhase2Assignments))
		return nil, nil, nil, nil
	}

	cleanerIDs := make([]int, 0, len(assignResult.AssignmentsByCleaner))
	for id := range assignResult.AssignmentsByCleaner {
		cleanerIDs = append(cleanerIDs, id)
	}

	perKey := events.NewPerKeySink()
	results := make([]phase3.Phase3Result, len(cleanerIDs))
	errs := make([]error, len(cleanerIDs))

	run := func(i int) {
		cleanerID := cleanerIDs[i]
		assignments := assignResult.AssignmentsByCleaner[cleanerID]
		groupTaskIDs := make([][]int, len(assignments))
		for j, a := range assignments {
			groupTaskIDs[j] = a.Group.TaskIDs
		}
		res, err := phase3.Schedule(ctx, workDate, cleanerByID[cleanerID], groupTaskIDs, tasksByID, windows, perKey.For(cleanerID))
		results[i] = res
		errs[i] = err
	}

	if len(cleanerIDs) < parallelCleanerThreshold {
		for i := range cleanerIDs {
			run(i)
		}
	} else {
		done := make(chan int, len(cleanerIDs))
		indices := make(chan int, len(cleanerIDs))
		for i := range cleanerIDs {
			indices <- i
		}
		close(indices)

		workers := 8
		for w := 0; w < workers; w++ {
			go func() {
				for i := range indices {
					run(i)
					done <- i
				}
			}()
		}
		for range cleanerIDs {
			<-done
		}
	}

	perKey.Merge(sink)

	var rows []domain.ScheduleRow
	var unassigned []domain.UnassignedTask
	cleanerIDByTask := make(map[int]int)

	for i, cleanerID := range cleanerIDs {
		if errs[i] != nil {
			return nil, nil, nil, fmt.Errorf("scheduling cleaner %d: %w", cleanerID, errs[i])
		}
		for _, r := range results[i].Rows {
			rows = append(rows, r)
			cleanerIDByTask[r.TaskID] = cleanerID
		}
		unassigned = append(unassigned, results[i].Dropped...)
	}

	return rows, unassigned, cleanerIDByTask, nil
}

func (o *Orchestrator) finish(ctx context.Context, runID string, status domain.RunStatus, summary domain.RunSummary, decisionEvents []domain.DecisionEvent) (RunResult, error) {
	for _, e := range decisionEvents {
		o.logger.Debug("decision event", "run_id", runID, "phase", e.Phase, "event_type", e.EventType, "payload", e.Payload)
	}
	if len(decisionEvents) > 0 {
		if err := o.decisions.SaveDecisions(ctx, decisionEvents); err != nil {
			o.logger.Error("saving decision events", "run_id", runID, "error", err)
		}
	}
	if err := o.runs.UpdateRunStatus(ctx, runID, status, summary); err != nil {
		return RunResult{}, fmt.Errorf("updating run %s status: %w", runID, err)
	}
	return RunResult{RunID: runID, Status: status, Summary: summary}, nil
}
