// Package storage defines the external-collaborator ports the orchestrator
// talks to — a relational run/decision store and a per-date key-value
// workspace store — plus Postgres and Redis adapters implementing them.
// The core only ever depends on these interfaces, never on a concrete
// driver.
package storage

import (
	"context"

	"cleanopt/pkg/domain"
)

// RunStore persists run records and their final per-cleaner output.
type RunStore interface {
	CreateRun(ctx context.Context, run domain.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, summary domain.RunSummary) error
	SaveAssignments(ctx context.Context, runID string, rows []domain.ScheduleRow, cleanerIDByTask map[int]int) error
	SaveUnassigned(ctx context.Context, runID string, unassigned []domain.UnassignedTask) error
}

// DecisionSink persists decision events in batches of up to 500, assigning
// each a monotonic insertion ID.
type DecisionSink interface {
	SaveDecisions(ctx context.Context, events []domain.DecisionEvent) error
}

// WorkspaceStore holds the per-work_date JSON snapshot of the input bundle
// a run was invoked with.
type WorkspaceStore interface {
	SaveWorkspace(ctx context.Context, workDate string, payload map[string]any) error
	LoadWorkspace(ctx context.Context, workDate string) (map[string]any, bool, error)
}
