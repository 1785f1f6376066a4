package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"cleanopt/pkg/domain"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// batchSize bounds decision-event and assignment inserts to 500 rows per
// transaction.
const batchSize = 500

// PostgresStore implements RunStore and DecisionSink against four tables:
// optimizer_run, optimizer_decision, optimizer_assignment,
// optimizer_unassigned. A *sqlx.DB and *slog.Logger are injected at
// construction, never held as a package global.
type PostgresStore struct {
	db      *sqlx.DB
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewPostgresStore opens a connection pool against dsn with the given
// pool-size and lifetime configuration.
func NewPostgresStore(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return &PostgresStore{
		db:     db,
		logger: logger,
		// One batch commit every 50ms caps the rate at which a large run's
		// decision log can saturate the connection pool.
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ComponentHealth is one dependency's health snapshot.
type ComponentHealth struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// Health pings Postgres and reports latency, used by the ops API's
// /health endpoint.
func (s *PostgresStore) Health(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: time.Since(start), Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: time.Since(start)}
}

// CreateRun inserts the run record.
func (s *PostgresStore) CreateRun(ctx context.Context, run domain.Run) error {
	query := `
		INSERT INTO optimizer_run (run_id, work_date, algorithm_version, params_json, status, summary_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.WorkDate, run.AlgorithmVersion,
		JSONMap(run.ParamsSnapshot), run.Status, summaryJSON(run.Summary), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.RunID, err)
	}
	return nil
}

// UpdateRunStatus performs the run's single post-creation status update.
func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, summary domain.RunSummary) error {
	query := `UPDATE optimizer_run SET status = $1, summary_json = $2 WHERE run_id = $3`

	result, err := s.db.ExecContext(ctx, query, status, summaryJSON(summary), runID)
	if err != nil {
		return fmt.Errorf("updating run %s status: %w", runID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result for run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func summaryJSON(s domain.RunSummary) JSONMap {
	return JSONMap{
		"tasks_loaded":     s.TasksLoaded,
		"groups_generated": s.GroupsGenerated,
		"groups_assigned":  s.GroupsAssigned,
		"tasks_scheduled":  s.TasksScheduled,
		"tasks_unassigned": s.TasksUnassigned,
		"duration_ms":      s.DurationMillis,
		"failure_reason":   s.FailureReason,
	}
}

// SaveAssignments writes the per-cleaner schedule rows.
func (s *PostgresStore) SaveAssignments(ctx context.Context, runID string, rows []domain.ScheduleRow, cleanerIDByTask map[int]int) error {
	query := `
		INSERT INTO optimizer_assignment
			(run_id, cleaner_id, task_id, logistic_code, sequence, start_time, end_time, travel_minutes_from_prev, reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, batch := range chunkRows(rows, batchSize) {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiting assignment batch for run %s: %w", runID, err)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning assignment batch for run %s: %w", runID, err)
		}

		for _, row := range batch {
			_, err := tx.ExecContext(ctx, query,
				runID, cleanerIDByTask[row.TaskID], row.TaskID, row.LogisticCode, row.Sequence,
				row.Start, row.End, row.TravelFromPrevMin, StringArray(row.Reasons))
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("inserting assignment row task %d for run %s: %w", row.TaskID, runID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing assignment batch for run %s: %w", runID, err)
		}
	}
	return nil
}

// SaveUnassigned writes the unassigned-task records.
func (s *PostgresStore) SaveUnassigned(ctx context.Context, runID string, unassigned []domain.UnassignedTask) error {
	query := `
		INSERT INTO optimizer_unassigned (run_id, task_id, logistic_code, reason_code, details_json)
		VALUES ($1, $2, $3, $4, $5)`

	for _, u := range unassigned {
		_, err := s.db.ExecContext(ctx, query, runID, u.TaskID, u.LogisticCode, u.ReasonCode, JSONMap(u.Details))
		if err != nil {
			return fmt.Errorf("inserting unassigned task %d for run %s: %w", u.TaskID, runID, err)
		}
	}
	return nil
}

// SaveDecisions batches decision events in groups of up to batchSize,
// assigning each a monotonic insertion ID via the table's serial primary
// key.
func (s *PostgresStore) SaveDecisions(ctx context.Context, events []domain.DecisionEvent) error {
	query := `
		INSERT INTO optimizer_decision (run_id, phase, event_type, payload_json)
		VALUES ($1, $2, $3, $4)`

	for _, batch := range chunkEvents(events, batchSize) {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiting decision batch: %w", err)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning decision batch: %w", err)
		}

		for _, e := range batch {
			_, err := tx.ExecContext(ctx, query, e.RunID, int(e.Phase), string(e.EventType), JSONMap(e.Payload))
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("inserting decision event %s for run %s: %w", e.EventType, e.RunID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing decision batch: %w", err)
		}
	}
	return nil
}

// GetRun looks up a run record by ID, satisfying pkg/api's runReader seam
// for GET /runs/:run_id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (domain.Run, bool, error) {
	var row struct {
		RunID            string  `db:"run_id"`
		WorkDate         string  `db:"work_date"`
		AlgorithmVersion string  `db:"algorithm_version"`
		ParamsJSON       JSONMap `db:"params_json"`
		Status           string  `db:"status"`
		SummaryJSON      JSONMap `db:"summary_json"`
		CreatedAt        time.Time `db:"created_at"`
	}

	err := s.db.GetContext(ctx, &row, `SELECT run_id, work_date, algorithm_version, params_json, status, summary_json, created_at FROM optimizer_run WHERE run_id = $1`, runID)
	if err == sql.ErrNoRows {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, fmt.Errorf("fetching run %s: %w", runID, err)
	}

	return domain.Run{
		RunID:            row.RunID,
		WorkDate:         row.WorkDate,
		AlgorithmVersion: row.AlgorithmVersion,
		ParamsSnapshot:   row.ParamsJSON,
		Status:           domain.RunStatus(row.Status),
		Summary:          summaryFromJSON(row.SummaryJSON),
		CreatedAt:        row.CreatedAt,
	}, true, nil
}

func summaryFromJSON(m JSONMap) domain.RunSummary {
	asInt := func(v any) int {
		f, _ := v.(float64)
		return int(f)
	}
	asInt64 := func(v any) int64 {
		f, _ := v.(float64)
		return int64(f)
	}
	reason, _ := m["failure_reason"].(string)
	return domain.RunSummary{
		TasksLoaded:     asInt(m["tasks_loaded"]),
		GroupsGenerated: asInt(m["groups_generated"]),
		GroupsAssigned:  asInt(m["groups_assigned"]),
		TasksScheduled:  asInt(m["tasks_scheduled"]),
		TasksUnassigned: asInt(m["tasks_unassigned"]),
		DurationMillis:  asInt64(m["duration_ms"]),
		FailureReason:   reason,
	}
}

// ListDecisions returns a page of decision events for runID, ordered by
// monotonic insertion ID, satisfying pkg/api's DecisionReader for
// GET /runs/:run_id/decisions.
func (s *PostgresStore) ListDecisions(ctx context.Context, runID string, offset, limit int) ([]domain.DecisionEvent, error) {
	var rows []struct {
		RunID       string  `db:"run_id"`
		Phase       int     `db:"phase"`
		EventType   string  `db:"event_type"`
		PayloadJSON JSONMap `db:"payload_json"`
		MonotonicID int64   `db:"monotonic_id"`
	}

	query := `
		SELECT run_id, phase, event_type, payload_json, monotonic_id
		FROM optimizer_decision
		WHERE run_id = $1
		ORDER BY monotonic_id ASC
		OFFSET $2 LIMIT $3`

	if err := s.db.SelectContext(ctx, &rows, query, runID, offset, limit); err != nil {
		return nil, fmt.Errorf("listing decisions for run %s: %w", runID, err)
	}

	out := make([]domain.DecisionEvent, len(rows))
	for i, r := range rows {
		out[i] = domain.DecisionEvent{
			RunID:       r.RunID,
			Phase:       domain.Phase(r.Phase),
			EventType:   domain.EventType(r.EventType),
			Payload:     r.PayloadJSON,
			MonotonicID: r.MonotonicID,
		}
	}
	return out, nil
}

func chunkRows(rows []domain.ScheduleRow, size int) [][]domain.ScheduleRow {
	var chunks [][]domain.ScheduleRow
	for size < len(rows) {
		rows, chunks = rows[size:], append(chunks, rows[0:size:size])
	}
	return append(chunks, rows)
}

func chunkEvents(events []domain.DecisionEvent, size int) [][]domain.DecisionEvent {
	var chunks [][]domain.DecisionEvent
	for size < len(events) {
		events, chunks = events[size:], append(chunks, events[0:size:size])
	}
	return append(chunks, events)
}

// Schema returns the DDL for the four persisted tables, for use by
// migration tooling or integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS optimizer_run (
	run_id             TEXT PRIMARY KEY,
	work_date          DATE NOT NULL,
	algorithm_version  TEXT NOT NULL,
	params_json        JSONB NOT NULL,
	status             TEXT NOT NULL,
	summary_json       JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS optimizer_decision (
	monotonic_id  BIGSERIAL PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES optimizer_run(run_id),
	phase         SMALLINT NOT NULL,
	event_type    TEXT NOT NULL,
	payload_json  JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS optimizer_assignment (
	id                        BIGSERIAL PRIMARY KEY,
	run_id                    TEXT NOT NULL REFERENCES optimizer_run(run_id),
	cleaner_id                INTEGER NOT NULL,
	task_id                   INTEGER NOT NULL,
	logistic_code             INTEGER NOT NULL,
	sequence                  INTEGER NOT NULL,
	start_time                TIMESTAMPTZ NOT NULL,
	end_time                  TIMESTAMPTZ NOT NULL,
	travel_minutes_from_prev  INTEGER NOT NULL,
	reasons                   TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS optimizer_unassigned (
	id             BIGSERIAL PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES optimizer_run(run_id),
	task_id        INTEGER NOT NULL,
	logistic_code  INTEGER NOT NULL,
	reason_code    TEXT NOT NULL,
	details_json   JSONB
);
`
