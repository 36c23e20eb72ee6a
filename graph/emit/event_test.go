package emit

import (
	"testing"
	"time"
)

func TestEventStruct(t *testing.T) {
	t.Run("complete event with all fields", func(t *testing.T) {
		meta := map[string]interface{}{
			"duration_ms": 125,
			"retry":       false,
		}

		event := Event{
			RunID:  "run-001",
			Step:   3,
			NodeID: "classify",
			Msg:    "node-succeeded",
			Meta:   meta,
		}

		if event.RunID != "run-001" {
			t.Errorf("expected RunID = 'run-001', got %q", event.RunID)
		}
		if event.Step != 3 {
			t.Errorf("expected Step = 3, got %d", event.Step)
		}
		if event.NodeID != "classify" {
			t.Errorf("expected NodeID = 'classify', got %q", event.NodeID)
		}
		if event.Msg != "node-succeeded" {
			t.Errorf("expected Msg = 'node-succeeded', got %q", event.Msg)
		}
		if event.Meta["duration_ms"] != 125 {
			t.Errorf("expected Meta['duration_ms'] = 125, got %v", event.Meta["duration_ms"])
		}
	})

	t.Run("minimal event", func(t *testing.T) {
		event := Event{
			RunID: "run-002",
			Msg:   "run-started",
		}

		if event.Step != 0 {
			t.Errorf("expected Step = 0 (zero value), got %d", event.Step)
		}
		if event.NodeID != "" {
			t.Errorf("expected NodeID = \"\" (zero value), got %q", event.NodeID)
		}
		if event.Meta != nil {
			t.Error("expected Meta = nil (zero value)")
		}
	})

	t.Run("event with metadata", func(t *testing.T) {
		event := Event{
			RunID:  "run-003",
			Step:   1,
			NodeID: "classify",
			Msg:    "node-started",
			Meta: map[string]interface{}{
				"timestamp": time.Now().Unix(),
				"order_id":  "4821",
				"tags":      []string{"priority", "refund"},
			},
		}

		if event.Meta["order_id"] != "4821" {
			t.Errorf("expected order_id = '4821', got %v", event.Meta["order_id"])
		}

		tags, ok := event.Meta["tags"].([]string)
		if !ok {
			t.Fatal("expected tags to be []string")
		}
		if len(tags) != 2 {
			t.Errorf("expected 2 tags, got %d", len(tags))
		}
	})

	t.Run("zero value event", func(t *testing.T) {
		var event Event

		if event.RunID != "" {
			t.Errorf("expected zero value RunID, got %q", event.RunID)
		}
		if event.Step != 0 {
			t.Errorf("expected zero value Step, got %d", event.Step)
		}
		if event.NodeID != "" {
			t.Errorf("expected zero value NodeID, got %q", event.NodeID)
		}
		if event.Msg != "" {
			t.Errorf("expected zero value Msg, got %q", event.Msg)
		}
		if event.Meta != nil {
			t.Error("expected zero value Meta to be nil")
		}
	})
}

func TestEventUseCases(t *testing.T) {
	t.Run("node start event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "draft-response",
			Msg:    "node-started",
		}

		if event.NodeID != "draft-response" {
			t.Errorf("expected NodeID = 'draft-response', got %q", event.NodeID)
		}
	})

	t.Run("node complete event with usage", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "draft-response",
			Msg:    "node-succeeded",
			Meta: map[string]interface{}{
				"tokens_in":  150,
				"tokens_out": 42,
				"cost_usd":   0.0031,
			},
		}

		if event.Meta["tokens_in"] != 150 {
			t.Errorf("expected tokens_in = 150, got %v", event.Meta["tokens_in"])
		}
	})

	t.Run("decision event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   2,
			NodeID: "classify",
			Msg:    "decision-recorded",
			Meta: map[string]interface{}{
				"decision_id": "dec-0002",
				"next_node":   "escalate",
			},
		}

		if event.Meta["next_node"] != "escalate" {
			t.Errorf("expected next_node = 'escalate', got %v", event.Meta["next_node"])
		}
	})

	t.Run("node failed event", func(t *testing.T) {
		event := Event{
			RunID:  "run-001",
			Step:   2,
			NodeID: "lookup-order",
			Msg:    "node-failed",
			Meta: map[string]interface{}{
				"error":     "tool timeout",
				"retryable": true,
			},
		}

		if event.Meta["retryable"] != true {
			t.Error("expected retryable = true")
		}
	})

	t.Run("run suspended event", func(t *testing.T) {
		event := Event{
			RunID: "run-001",
			Step:  5,
			Msg:   "run-suspended",
			Meta: map[string]interface{}{
				"checkpoint_id": "cp-after-classify",
			},
		}

		cpID, ok := event.Meta["checkpoint_id"].(string)
		if !ok || cpID != "cp-after-classify" {
			t.Errorf("expected checkpoint_id = 'cp-after-classify', got %v", cpID)
		}
	})
}
