// Package emit provides event emission and observability for graph execution.
package emit

import "context"

// Emitter is the scheduler's observability sink: it receives an Event for
// every run-level and node-visit transition. LogEmitter, the null Emitter,
// BufferedEmitter, and OTelEmitter are the implementations shipped with
// this module; a host plugs in its own to forward events elsewhere
// (metrics, a trace collector, a log aggregator).
//
// Implementations must not block the scheduler's visit loop for long and
// must not panic; a misbehaving Emitter should degrade observability, not
// the run itself.
type Emitter interface {
	// Emit sends one event. Implementations should not block run
	// execution; a slow backend should buffer or drop rather than stall
	// the scheduler.
	Emit(event Event)

	// EmitBatch sends events in order, amortizing overhead for a backend
	// that bulk-inserts or round-trips over a network. Returns an error
	// only for a failure to the emitter as a whole; a single bad event
	// within the batch should be logged and skipped, not propagated.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered, or ctx
	// is done. A host calls this at shutdown and after a run reaches a
	// terminal status, to avoid losing the run's trailing events.
	Flush(ctx context.Context) error
}
