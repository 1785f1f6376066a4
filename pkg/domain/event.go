package domain

// Phase identifies which of the three optimizer phases emitted an event.
type Phase int

const (
	Phase1 Phase = 1
	Phase2 Phase = 2
	Phase3 Phase = 3
)

// EventType is the exhaustive decision-event tag enumeration.
type EventType string

const (
	EventPhase1GroupCandidate     EventType = "PHASE1_GROUP_CANDIDATE"
	EventPhase1GroupSingleCreated EventType = "PHASE1_GROUP_SINGLE_CREATED"
	EventPhase1UsedFallback20     EventType = "PHASE1_USED_FALLBACK_20"

	EventPhase2CleanerCandidate        EventType = "PHASE2_CLEANER_CANDIDATE"
	EventPhase2CleanerReject           EventType = "PHASE2_CLEANER_REJECT"
	EventPhase2GroupAssigned           EventType = "PHASE2_GROUP_ASSIGNED"
	EventPhase2TaskDropped             EventType = "PHASE2_TASK_DROPPED"
	EventPhase2GroupUnassignedCandidate EventType = "PHASE2_GROUP_UNASSIGNED_CANDIDATE"

	EventPhase3GroupScheduled       EventType = "PHASE3_GROUP_SCHEDULED"
	EventPhase3TaskDroppedTime      EventType = "PHASE3_TASK_DROPPED_TIME"
	EventPhase3TaskUnassignedFinal  EventType = "PHASE3_TASK_UNASSIGNED_FINAL"
	EventPhase3SettingsFallbackUsed EventType = "PHASE3_SETTINGS_FALLBACK_USED"
	EventPhase3NoSelectedCleaners   EventType = "PHASE3_NO_SELECTED_CLEANERS"
	EventPhase3NoPhase2Assignments  EventType = "PHASE3_NO_PHASE2_ASSIGNMENTS"
)

// DecisionEvent is a single append-only decision-log entry. MonotonicID is
// assigned by the store at insertion time; events carry no timestamp of
// their own — insertion order is the ordering guarantee.
type DecisionEvent struct {
	RunID       string
	Phase       Phase
	EventType   EventType
	Payload     map[string]any
	MonotonicID int64
}

// NewDecisionEvent builds an event with a fresh payload map, ready for the
// caller to populate before handing it to a sink.
func NewDecisionEvent(runID string, phase Phase, eventType EventType) DecisionEvent {
	return DecisionEvent{
		RunID:     runID,
		Phase:     phase,
		EventType: eventType,
		Payload:   make(map[string]any),
	}
}

// With sets a payload key and returns the event for chaining.
func (e DecisionEvent) With(key string, value any) DecisionEvent {
	e.Payload[key] = value
	return e
}
