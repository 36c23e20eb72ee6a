// Package recorder implements the append-only decision/outcome/problem
// event sink described in §4.7. It is a thin layer over graph/emit: every
// operation here translates into one emit.Event, so any Emitter
// implementation (log, buffered, OpenTelemetry, null) doubles as a decision
// trace sink with no additional wiring.
package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentgraph/agentgraph/graph/emit"
)

// Option configures a Recorder at construction.
type Option func(*Recorder)

// WithEmitter sets the event sink decisions, outcomes, and problems are
// published through. Defaults to emit.NewNullEmitter if unset.
func WithEmitter(e emit.Emitter) Option {
	return func(r *Recorder) { r.emitter = e }
}

// DecisionOption is one candidate considered at a decision point.
type DecisionOption struct {
	ID          string
	Description string
	Kind        string
	Pros        []string
	Cons        []string
}

// Recorder is the append-only event sink handed to the scheduler at
// construction. Events for a given run are totally ordered via a
// per-run monotonic step counter.
type Recorder struct {
	emitter emit.Emitter

	mu    sync.Mutex
	steps map[string]int // runID -> next step number
}

// New constructs a Recorder. With no options, events are discarded.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		emitter: emit.NewNullEmitter(),
		steps:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) nextStep(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	step := r.steps[runID]
	r.steps[runID] = step + 1
	return step
}

// StartRun emits a run-started event and returns a freshly minted run id.
func (r *Recorder) StartRun(goal, input string) string {
	runID := uuid.NewString()
	r.emitter.Emit(emit.Event{
		RunID: runID,
		Step:  r.nextStep(runID),
		Msg:   "run-started",
		Meta: map[string]interface{}{
			"goal":  goal,
			"input": input,
		},
	})
	return runID
}

// RecordDecision emits a decision-recorded event at the moment a node
// commits to a path, returning a freshly minted decision id.
func (r *Recorder) RecordDecision(runID, nodeID, intent string, options []DecisionOption, chosen, reasoning string) string {
	decisionID := uuid.NewString()
	r.emitter.Emit(emit.Event{
		RunID:  runID,
		Step:   r.nextStep(runID),
		NodeID: nodeID,
		Msg:    "decision-recorded",
		Meta: map[string]interface{}{
			"decision_id": decisionID,
			"intent":      intent,
			"options":     options,
			"chosen":      chosen,
			"reasoning":   reasoning,
		},
	})
	return decisionID
}

// RecordOutcome emits an outcome-recorded event referencing a prior decision.
func (r *Recorder) RecordOutcome(runID, decisionID string, success bool, result interface{}, summary string, latency time.Duration, tokensIn, tokensOut int) {
	r.emitter.Emit(emit.Event{
		RunID: runID,
		Step:  r.nextStep(runID),
		Msg:   "outcome-recorded",
		Meta: map[string]interface{}{
			"decision_id": decisionID,
			"success":     success,
			"result":      result,
			"summary":     summary,
			"latency_ms":  latency.Milliseconds(),
			"tokens_in":   tokensIn,
			"tokens_out":  tokensOut,
		},
	})
}

// RecordProblem emits a problem-flagged event for later root-cause analysis.
func (r *Recorder) RecordProblem(runID, severity, nodeID, message, remedy string) {
	r.emitter.Emit(emit.Event{
		RunID:  runID,
		Step:   r.nextStep(runID),
		NodeID: nodeID,
		Msg:    "problem-flagged",
		Meta: map[string]interface{}{
			"severity": severity,
			"message":  message,
			"remedy":   remedy,
		},
	})
}

// EndRun emits the run's terminal event and stops tracking its step counter.
func (r *Recorder) EndRun(runID string, success bool, narrative string, outputs map[string]interface{}) {
	r.emitter.Emit(emit.Event{
		RunID: runID,
		Step:  r.nextStep(runID),
		Msg:   "run-ended",
		Meta: map[string]interface{}{
			"success":   success,
			"narrative": narrative,
			"outputs":   outputs,
		},
	})

	r.mu.Lock()
	delete(r.steps, runID)
	r.mu.Unlock()
}
