package events

import (
	"testing"

	"cleanopt/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func TestMemorySink_PreservesEmitOrder(t *testing.T) {
	sink := NewMemorySink()
	sink.Emit(domain.NewDecisionEvent("run-1", domain.Phase1, domain.EventPhase1GroupCandidate))
	sink.Emit(domain.NewDecisionEvent("run-1", domain.Phase1, domain.EventPhase1GroupSingleCreated))

	assert.Len(t, sink.Events, 2)
	assert.Equal(t, domain.EventPhase1GroupCandidate, sink.Events[0].EventType)
	assert.Equal(t, domain.EventPhase1GroupSingleCreated, sink.Events[1].EventType)
}

func TestPerKeySink_MergeOrdersByKeyThenEmission(t *testing.T) {
	p := NewPerKeySink()

	p.For(5).Emit(domain.NewDecisionEvent("run-1", domain.Phase1, domain.EventPhase1GroupCandidate).With("seed", 5))
	p.For(1).Emit(domain.NewDecisionEvent("run-1", domain.Phase1, domain.EventPhase1GroupSingleCreated).With("seed", 1))
	p.For(1).Emit(domain.NewDecisionEvent("run-1", domain.Phase1, domain.EventPhase1UsedFallback20).With("seed", 1))

	dest := NewMemorySink()
	p.Merge(dest)

	assert.Len(t, dest.Events, 3)
	assert.Equal(t, 1, dest.Events[0].Payload["seed"])
	assert.Equal(t, 1, dest.Events[1].Payload["seed"])
	assert.Equal(t, 5, dest.Events[2].Payload["seed"])
}
