package emit

import (
	"context"
	"testing"
	"time"
)

func TestBufferedEmitterStoresEvents(t *testing.T) {
	t.Run("stores single event", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "classify",
			Msg:    "node-started",
		}

		emitter.Emit(event)

		history := emitter.GetHistory("run-001")
		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].NodeID != "classify" {
			t.Errorf("expected NodeID = 'classify', got %q", history[0].NodeID)
		}
	})

	t.Run("stores multiple events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"},
			{RunID: "run-001", Step: 2, NodeID: "escalate", Msg: "node-started"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		history := emitter.GetHistory("run-001")
		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})

	t.Run("isolates events by runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "run-started"})
		emitter.Emit(Event{RunID: "run-002", Msg: "run-started"})
		emitter.Emit(Event{RunID: "run-001", Msg: "run-finished"})

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 2 {
			t.Errorf("expected 2 events for run-001, got %d", len(history1))
		}
		if len(history2) != 1 {
			t.Errorf("expected 1 event for run-002, got %d", len(history2))
		}
	})

	t.Run("returns empty slice for unknown runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		history := emitter.GetHistory("unknown-run")
		if history == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(history) != 0 {
			t.Errorf("expected 0 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitterEmitBatchAndFlush(t *testing.T) {
	emitter := NewBufferedEmitter()

	err := emitter.EmitBatch(context.Background(), []Event{
		{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
		{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(emitter.GetHistory("run-001")) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.GetHistory("run-001")))
	}

	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestBufferedEmitterGetHistoryWithFilter(t *testing.T) {
	t.Run("filters by nodeID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", NodeID: "classify", Msg: "node-started"},
			{RunID: "run-001", NodeID: "escalate", Msg: "node-started"},
			{RunID: "run-001", NodeID: "classify", Msg: "node-succeeded"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{NodeID: "classify"}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.NodeID != "classify" {
				t.Errorf("expected NodeID = 'classify', got %q", event.NodeID)
			}
		}
	})

	t.Run("filters by message", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Msg: "node-started"},
			{RunID: "run-001", Msg: "node-succeeded"},
			{RunID: "run-001", Msg: "node-started"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{Msg: "node-started"}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.Msg != "node-started" {
				t.Errorf("expected Msg = 'node-started', got %q", event.Msg)
			}
		}
	})

	t.Run("filters by step range", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Step: 0, Msg: "run-started"},
			{RunID: "run-001", Step: 1, Msg: "node-started"},
			{RunID: "run-001", Step: 2, Msg: "node-started"},
			{RunID: "run-001", Step: 3, Msg: "run-finished"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		minStep := 1
		maxStep := 2
		filter := HistoryFilter{MinStep: &minStep, MaxStep: &maxStep}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		if history[0].Step != 1 || history[1].Step != 2 {
			t.Error("expected steps 1 and 2")
		}
	})

	t.Run("combines multiple filters", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-started"},
			{RunID: "run-001", Step: 1, NodeID: "escalate", Msg: "node-started"},
			{RunID: "run-001", Step: 2, NodeID: "classify", Msg: "node-started"},
			{RunID: "run-001", Step: 1, NodeID: "classify", Msg: "node-succeeded"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		step := 1
		filter := HistoryFilter{
			NodeID:  "classify",
			Msg:     "node-started",
			MinStep: &step,
			MaxStep: &step,
		}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].Step != 1 || history[0].NodeID != "classify" || history[0].Msg != "node-started" {
			t.Error("expected event with step=1, nodeID=classify, msg=node-started")
		}
	})

	t.Run("empty filter returns all events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Msg: "run-started"},
			{RunID: "run-001", Msg: "node-started"},
			{RunID: "run-001", Msg: "run-finished"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitterClear(t *testing.T) {
	t.Run("clears all events for runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "run-started"})
		emitter.Emit(Event{RunID: "run-002", Msg: "run-started"})

		emitter.Clear("run-001")

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 0 {
			t.Errorf("expected 0 events for run-001, got %d", len(history1))
		}
		if len(history2) != 1 {
			t.Errorf("expected 1 event for run-002, got %d", len(history2))
		}
	})

	t.Run("clears all events when runID is empty", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "run-started"})
		emitter.Emit(Event{RunID: "run-002", Msg: "run-started"})

		emitter.Clear("")

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 0 || len(history2) != 0 {
			t.Error("expected all events to be cleared")
		}
	})
}

func TestBufferedEmitterThreadSafety(t *testing.T) {
	t.Run("concurrent emit and read", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func(_ int) {
				for j := 0; j < 100; j++ {
					emitter.Emit(Event{
						RunID: "run-001",
						Step:  j,
						Msg:   "node-started",
					})
				}
				done <- true
			}(i)
		}

		readDone := make(chan bool)
		go func() {
			for i := 0; i < 100; i++ {
				emitter.GetHistory("run-001")
				time.Sleep(1 * time.Millisecond)
			}
			readDone <- true
		}()

		for i := 0; i < 10; i++ {
			<-done
		}
		<-readDone

		history := emitter.GetHistory("run-001")
		if len(history) != 1000 {
			t.Errorf("expected 1000 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitterInterfaceContract(_ *testing.T) {
	var _ Emitter = NewBufferedEmitter()
}
