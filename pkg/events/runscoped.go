package events

import "cleanopt/pkg/domain"

// RunScopedSink stamps every event's RunID before forwarding to the
// wrapped Sink. Phase 1/2/3 build events without knowing the run_id (their
// signatures take only a Sink); the orchestrator wraps its batching sink
// with this type once, at the start of a run.
type RunScopedSink struct {
	RunID string
	Next  Sink
}

// NewRunScopedSink returns a Sink that stamps runID on every event.
func NewRunScopedSink(runID string, next Sink) *RunScopedSink {
	return &RunScopedSink{RunID: runID, Next: next}
}

// Emit implements Sink.
func (r *RunScopedSink) Emit(event domain.DecisionEvent) {
	event.RunID = r.RunID
	r.Next.Emit(event)
}
