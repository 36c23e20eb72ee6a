package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by keeping every event in memory,
// indexed by run ID, with query and filter methods on top. It's meant for
// tests and local debugging — a run that wants to assert on its own event
// trail without standing up a log pipeline — not for a long-lived host
// process, since nothing ever evicts old runs short of an explicit Clear.
//
//	emitter := emit.NewBufferedEmitter()
//	sched := graph.NewScheduler(g, graph.Options{Emitter: emitter})
//	runID, _ := sched.Run(ctx, "classify", input)
//	history := emitter.GetHistory(runID)
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter narrows GetHistoryWithFilter's result. Unset fields (zero
// value or nil pointer) impose no constraint; set fields combine with AND.
type HistoryFilter struct {
	NodeID  string // match events from this node only
	Msg     string // match events with this Msg only, e.g. "node-failed"
	MinStep *int   // match events with Step >= MinStep
	MaxStep *int   // match events with Step <= MaxStep
}

// NewBufferedEmitter returns an empty BufferedEmitter. Safe for concurrent
// use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit appends event under its RunID.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// EmitBatch appends events in order.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		b.Emit(event)
	}
	return nil
}

// Flush is a no-op; BufferedEmitter's buffer has no downstream to drain.
func (b *BufferedEmitter) Flush(_ context.Context) error {
	return nil
}

// GetHistory returns a copy of runID's events in emission order, or an
// empty (non-nil) slice if the run has none.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	if events == nil {
		return []Event{}
	}

	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns a copy of runID's events matching filter, in
// emission order, or an empty (non-nil) slice if none match.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	if events == nil {
		return []Event{}
	}

	if filter.NodeID == "" && filter.Msg == "" && filter.MinStep == nil && filter.MaxStep == nil {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}

	var result []Event
	for _, event := range events {
		if !b.matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}

	if result == nil {
		return []Event{}
	}
	return result
}

func (b *BufferedEmitter) matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.NodeID != "" && event.NodeID != filter.NodeID {
		return false
	}

	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}

	if filter.MinStep != nil && event.Step < *filter.MinStep {
		return false
	}

	if filter.MaxStep != nil && event.Step > *filter.MaxStep {
		return false
	}

	return true
}

// Clear discards runID's events, or every run's events if runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, runID)
	}
}
