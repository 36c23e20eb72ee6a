package emit

import "context"

// NullEmitter implements Emitter by discarding every event. It is the
// default for a host that has no observability backend configured and
// doesn't want scheduler runs paying for one anyway.
//
//	sched := graph.NewScheduler(g, graph.Options{Emitter: emit.NewNullEmitter()})
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter. It is safe for concurrent use and
// has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards event.
func (n *NullEmitter) Emit(event Event) {
}

// EmitBatch discards events.
func (n *NullEmitter) EmitBatch(_ context.Context, events []Event) error {
	return nil
}

// Flush is a no-op; NullEmitter buffers nothing.
func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
