package events

import (
	"sort"
	"sync"

	"cleanopt/pkg/domain"
)

// PerKeySink buffers events under an arbitrary key (a seed task ID for
// Phase 1, a cleaner ID for Phase 3) so a bounded worker pool can process
// keys concurrently while each key's own emission order is preserved. Merge
// flattens the buffers in ascending key order into a single downstream
// Sink: ordering is only promised within a seed/cleaner, not across them.
type PerKeySink struct {
	mu      sync.Mutex
	buffers map[int][]domain.DecisionEvent
}

// NewPerKeySink returns an empty PerKeySink.
func NewPerKeySink() *PerKeySink {
	return &PerKeySink{buffers: make(map[int][]domain.DecisionEvent)}
}

// keySink is a Sink bound to one key; safe for one worker goroutine at a
// time per key.
type keySink struct {
	parent *PerKeySink
	key    int
}

// For returns a Sink scoped to key.
func (p *PerKeySink) For(key int) Sink {
	return keySink{parent: p, key: key}
}

// Emit implements Sink.
func (k keySink) Emit(event domain.DecisionEvent) {
	k.parent.mu.Lock()
	defer k.parent.mu.Unlock()
	k.parent.buffers[k.key] = append(k.parent.buffers[k.key], event)
}

// Merge flattens every key's buffered events, in ascending key order, into
// dest.
func (p *PerKeySink) Merge(dest Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]int, 0, len(p.buffers))
	for k := range p.buffers {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for _, k := range keys {
		for _, e := range p.buffers[k] {
			dest.Emit(e)
		}
	}
}
