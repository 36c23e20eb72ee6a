package graph

import (
	"time"

	"github.com/agentgraph/agentgraph/graph/cost"
)

// RunStatus is the lifecycle state of a Run, per §4.2.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuspended RunStatus = "suspended"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the mutable execution state of one graph run. The scheduler keeps
// one in memory for the run's lifetime; a suspended run's fields are also
// captured in a store.RunSnapshot so it can be reconstructed after a
// process restart.
type Run struct {
	ID      string
	GraphID string
	Status  RunStatus

	Memory *MemoryPlane
	Visits *VisitCounter

	// CurrentNode is the node the scheduler is about to execute, or just
	// suspended at. Meaningful only while Status is running or suspended.
	CurrentNode string

	// PauseNodeID and PausePayload describe the most recent suspension;
	// Resume uses PauseNodeID to look up the "<id>_resume" entry point.
	PauseNodeID  string
	PausePayload string

	// Transcript carries an in-progress llm-tools conversation across a
	// suspend/resume cycle so the resumed node continues the same
	// exchange rather than starting over.
	Transcript []TranscriptMessage

	// DecisionID is the most recent decision recorded for this run,
	// threaded through to RecordOutcome once the node completes.
	DecisionID string

	Err *RuntimeError

	StartedAt time.Time
	EndedAt   time.Time

	cost *cost.CostTracker
}

func newRun(id, graphID, entryNode string, initial map[string]any) *Run {
	return &Run{
		ID:          id,
		GraphID:     graphID,
		Status:      RunRunning,
		Memory:      NewMemoryPlane(initial),
		Visits:      NewVisitCounter(),
		CurrentNode: entryNode,
		StartedAt:   time.Now(),
		cost:        newCostTracker(id),
	}
}
