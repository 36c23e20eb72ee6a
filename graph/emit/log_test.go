package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterStructuredOutput(t *testing.T) {
	t.Run("emits event with all fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "classify",
			Msg:    "node-started",
			Meta: map[string]interface{}{
				"tool_name": "lookup_order",
			},
		}

		emitter.Emit(event)

		output := buf.String()
		if output == "" {
			t.Fatal("expected output, got empty string")
		}

		if !strings.Contains(output, "run-001") {
			t.Errorf("expected output to contain RunID 'run-001', got: %s", output)
		}
		if !strings.Contains(output, "classify") {
			t.Errorf("expected output to contain NodeID 'classify', got: %s", output)
		}
		if !strings.Contains(output, "node-started") {
			t.Errorf("expected output to contain Msg 'node-started', got: %s", output)
		}
	})

	t.Run("emits multiple events", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		event1 := Event{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"}
		event2 := Event{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"}

		emitter.Emit(event1)
		emitter.Emit(event2)

		output := buf.String()
		lines := strings.Split(strings.TrimSpace(output), "\n")

		if len(lines) < 2 {
			t.Errorf("expected at least 2 lines of output, got %d", len(lines))
		}
	})
}

func TestLogEmitterJSONFormatting(t *testing.T) {
	t.Run("emits valid JSON when JSON mode enabled", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		event := Event{
			RunID:  "run-002",
			Step:   2,
			NodeID: "escalate",
			Msg:    "node-succeeded",
			Meta: map[string]interface{}{
				"tokens_out": 42,
				"status":     "success",
			},
		}

		emitter.Emit(event)

		output := buf.String()
		if output == "" {
			t.Fatal("expected JSON output, got empty string")
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(output), &parsed); err != nil {
			t.Fatalf("expected valid JSON, got error: %v\nOutput: %s", err, output)
		}

		if parsed["runID"] != "run-002" {
			t.Errorf("expected runID 'run-002', got %v", parsed["runID"])
		}
		if parsed["step"] != float64(2) {
			t.Errorf("expected step 2, got %v", parsed["step"])
		}
		if parsed["nodeID"] != "escalate" {
			t.Errorf("expected nodeID 'escalate', got %v", parsed["nodeID"])
		}
		if parsed["msg"] != "node-succeeded" {
			t.Errorf("expected msg 'node-succeeded', got %v", parsed["msg"])
		}

		meta, ok := parsed["meta"].(map[string]interface{})
		if !ok {
			t.Fatal("expected meta to be a map")
		}
		if meta["tokens_out"] != float64(42) {
			t.Errorf("expected tokens_out 42, got %v", meta["tokens_out"])
		}
	})

	t.Run("emits multiple JSON events on separate lines", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		event1 := Event{RunID: "run-001", Step: 0, NodeID: "classify", Msg: "node-started"}
		event2 := Event{RunID: "run-001", Step: 0, NodeID: "classify", Msg: "node-succeeded"}

		emitter.Emit(event1)
		emitter.Emit(event2)

		output := buf.String()
		lines := strings.Split(strings.TrimSpace(output), "\n")

		if len(lines) != 2 {
			t.Errorf("expected 2 lines of JSON, got %d", len(lines))
		}

		for i, line := range lines {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(line), &parsed); err != nil {
				t.Errorf("line %d: expected valid JSON, got error: %v\nLine: %s", i, err, line)
			}
		}
	})
}

func TestLogEmitterEmitBatchAndFlush(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	err := emitter.EmitBatch(context.Background(), []Event{
		{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
		{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}

	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLogEmitterInterfaceContract(t *testing.T) {
	var buf bytes.Buffer
	var _ Emitter = NewLogEmitter(&buf, false)
}
