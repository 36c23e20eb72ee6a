package emit

import (
	"context"
	"testing"
)

func TestNullEmitterNoOp(t *testing.T) {
	t.Run("emits events without error", func(t *testing.T) {
		emitter := NewNullEmitter()

		events := []Event{
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"},
			{RunID: "run-001", Step: 2, NodeID: "escalate", Msg: "node-failed", Meta: map[string]interface{}{"error": "tool timeout"}},
		}

		for _, event := range events {
			emitter.Emit(event)
		}
	})

	t.Run("can emit with nil meta", func(t *testing.T) {
		emitter := NewNullEmitter()

		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "classify",
			Msg:    "node-started",
			Meta:   nil,
		}

		emitter.Emit(event)
	})

	t.Run("EmitBatch and Flush are no-ops", func(t *testing.T) {
		emitter := NewNullEmitter()

		err := emitter.EmitBatch(context.Background(), []Event{
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if err := emitter.Flush(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestNullEmitterInterfaceContract(t *testing.T) {
	var _ Emitter = NewNullEmitter()
}
