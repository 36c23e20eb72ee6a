package emit

// Event is one observability record the scheduler raises as a run
// progresses: a node visit starting or finishing, a decision a predicate
// made, a pause/resume transition, or a run reaching a terminal status.
// The scheduler and graph/recorder produce events; LogEmitter, NullEmitter,
// BufferedEmitter, and OTelEmitter are the consumers shipped with this module.
type Event struct {
	// RunID identifies the run that emitted this event.
	RunID string

	// Step is the run's sequential visit count at the time of the event
	// (1-indexed). Zero for run-level events (run started, run finished)
	// that aren't attributed to a particular node visit.
	Step int

	// NodeID identifies which node emitted this event. Empty for
	// run-level events.
	NodeID string

	// Msg is a short, human-readable description, e.g. "node-started",
	// "node-succeeded", "decision-recorded", "run-suspended".
	Msg string

	// Meta carries event-specific structured data. Common keys:
	//   - "duration_ms": node visit duration
	//   - "error": the node's RuntimeError, if Msg reports a failure
	//   - "tokens_in" / "tokens_out": LLM token usage for the visit
	//   - "next_node": the node a decision routed to
	Meta map[string]interface{}
}
