package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentgraph/agentgraph/graph/emit"
	"github.com/agentgraph/agentgraph/graph/model"
	"github.com/agentgraph/agentgraph/graph/store"
)

// Scheduler is the single-threaded-per-run cooperative core described in
// §4.3. One Scheduler is bound to one Graph and may drive many concurrent
// runs; runs share nothing but the tool broker's server registry and the
// decision recorder.
type Scheduler struct {
	graph *Graph
	opts  Options

	mu        sync.Mutex
	runs      map[string]*Run
	cancelled map[string]struct{}
}

// NewScheduler constructs a Scheduler bound to g. Unset Options fields take
// the defaults documented on Options.
func NewScheduler(g *Graph, opts Options) *Scheduler {
	opts.setDefaults()
	return &Scheduler{
		graph:     g,
		opts:      opts,
		runs:      make(map[string]*Run),
		cancelled: make(map[string]struct{}),
	}
}

// RunStatusInfo is the host-facing view of a run, per §6's status operation.
type RunStatusInfo struct {
	Status      RunStatus
	CurrentNode string
	Outputs     map[string]any
	CostUSD     float64
}

func (s *Scheduler) goalName() string {
	if s.graph.Goal == nil {
		return s.graph.ID
	}
	return s.graph.Goal.Name
}

// Run starts a new run from the named entry point and drives it to
// completion, suspension, or failure before returning. The returned run id
// is valid for Status/Resume/Cancel regardless of outcome.
func (s *Scheduler) Run(ctx context.Context, entryPoint string, input map[string]any) (string, error) {
	nodeID, ok := s.graph.EntryPoints[entryPoint]
	if !ok {
		return "", NewRuntimeError(KindValidation, "", "unknown entry point "+entryPoint, nil)
	}

	runID := s.opts.Recorder.StartRun(s.goalName(), renderInputPayload(input))
	run := newRun(runID, s.graph.ID, nodeID, input)

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()
	s.updateActiveRuns()

	err := s.runLoop(ctx, run)
	s.updateActiveRuns()
	return runID, err
}

// Resume re-enters a suspended run at its `<pause-node-id>_resume` entry
// point, injecting resumeInput into the memory plane, per §4.6. If the run
// is not held in memory (e.g. after a process restart) it is first
// reconstructed from the configured Store.
func (s *Scheduler) Resume(ctx context.Context, runID string, resumeInput map[string]any) error {
	s.mu.Lock()
	run, ok := s.runs[runID]
	s.mu.Unlock()

	if !ok {
		loaded, err := s.loadSnapshot(ctx, runID)
		if err != nil {
			return err
		}
		run = loaded
		s.mu.Lock()
		s.runs[runID] = run
		s.mu.Unlock()
	}

	if run.Status != RunSuspended {
		return NewRuntimeError(KindValidation, run.PauseNodeID, "run is not suspended", nil)
	}

	resumeEntry := run.PauseNodeID + "_resume"
	nextNodeID, ok := s.graph.EntryPoints[resumeEntry]
	if !ok {
		return NewRuntimeError(KindValidation, run.PauseNodeID, "no resume entry point "+resumeEntry+" declared", nil)
	}

	for k, v := range resumeInput {
		run.Memory.Write(k, v)
	}

	// Resuming back into the same client-facing node that suspended
	// continues its in-progress transcript; any other resume target
	// starts fresh.
	if nextNodeID == run.PauseNodeID && len(run.Transcript) > 0 {
		reply := resumeInput["input"]
		run.Transcript = append(run.Transcript, TranscriptMessage{Role: model.RoleUser, Content: fmt.Sprint(reply)})
	} else {
		run.Transcript = nil
	}

	run.Status = RunRunning
	run.CurrentNode = nextNodeID
	run.PauseNodeID = ""
	run.PausePayload = ""

	err := s.runLoop(ctx, run)
	s.updateActiveRuns()
	return err
}

// Cancel requests that run stop at its next safe point, per §5. The
// currently-executing node is allowed to return or fail; no further node is
// scheduled.
func (s *Scheduler) Cancel(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return ErrNotFound
	}
	s.cancelled[runID] = struct{}{}
	return nil
}

func (s *Scheduler) isCancelled(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancelled[runID]
	return ok
}

// Status returns the current lifecycle state, current node, and last
// merged memory-plane contents for runID.
func (s *Scheduler) Status(runID string) (RunStatusInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return RunStatusInfo{}, ErrNotFound
	}
	return RunStatusInfo{
		Status:      run.Status,
		CurrentNode: run.CurrentNode,
		Outputs:     run.Memory.Snapshot(),
		CostUSD:     run.cost.GetTotalCost(),
	}, nil
}

func (s *Scheduler) updateActiveRuns() {
	if s.opts.Metrics == nil {
		return
	}
	s.mu.Lock()
	count := 0
	for _, r := range s.runs {
		if r.Status == RunRunning || r.Status == RunSuspended {
			count++
		}
	}
	s.mu.Unlock()
	s.opts.Metrics.SetActiveRuns(count)
}

// runLoop is the §4.3 main loop. It returns nil when the run completes or
// suspends; a non-nil error means the run failed, and also reflects the
// failure kind recorded on run.Err.
func (s *Scheduler) runLoop(ctx context.Context, run *Run) error {
	for {
		if err := ctx.Err(); err != nil {
			return s.fail(run, NewRuntimeError(KindCancelled, run.CurrentNode, "run cancelled", err))
		}
		if s.isCancelled(run.ID) {
			return s.fail(run, NewRuntimeError(KindCancelled, run.CurrentNode, "run cancelled by host", nil))
		}

		nodeID := run.CurrentNode
		node, ok := s.graph.Nodes[nodeID]
		if !ok {
			return s.fail(run, NewRuntimeError(KindValidation, nodeID, "node not found", nil))
		}

		if run.Visits.ExceedsCap(nodeID, node.MaxVisits) {
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordVisitCapExceeded(run.ID, nodeID)
			}
			next, found := s.selectEdge(run, nodeID, false, run.Memory.Snapshot())
			if !found {
				return s.fail(run, NewRuntimeError(KindVisitCapExceeded, nodeID, "node exceeded its max visit count", nil))
			}
			run.CurrentNode = next
			continue
		}

		snapshot := run.Memory.Snapshot()
		view := node.inputView(snapshot)
		if missing := run.Memory.HasAll(node.requiredInputs()); len(missing) > 0 {
			return s.fail(run, NewRuntimeError(KindMissingInput, nodeID, "missing input keys: "+strings.Join(missing, ", "), nil))
		}

		decisionID := s.opts.Recorder.RecordDecision(run.ID, nodeID, "execute node", nil, nodeID, "")
		s.opts.Emitter.Emit(emit.Event{RunID: run.ID, NodeID: nodeID, Msg: "node-start"})

		result, latency := s.executeWithRetry(ctx, run, node, view)

		outcomeLabel := "success"
		switch result.Outcome {
		case OutcomeFailure:
			outcomeLabel = "failure"
		case OutcomeSuspend:
			outcomeLabel = "suspend"
		}
		s.opts.Emitter.Emit(emit.Event{
			RunID:  run.ID,
			NodeID: nodeID,
			Msg:    "node-end",
			Meta:   map[string]interface{}{"outcome": outcomeLabel, "duration_ms": latency.Milliseconds()},
		})
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordNodeLatency(run.ID, nodeID, latency, outcomeLabel)
		}

		switch result.Outcome {
		case OutcomeSuspend:
			run.Status = RunSuspended
			run.PauseNodeID = nodeID
			if result.Pause != nil {
				run.PausePayload = result.Pause.Message
				run.Transcript = result.Pause.Transcript
			}
			s.opts.Recorder.RecordOutcome(run.ID, decisionID, true, nil, "suspended awaiting input", latency, 0, 0)
			if err := s.persistSnapshot(ctx, run); err != nil {
				s.opts.Recorder.RecordProblem(run.ID, "warning", nodeID, "failed to persist snapshot: "+err.Error(), "")
			}
			return nil

		case OutcomeFailure:
			s.opts.Recorder.RecordOutcome(run.ID, decisionID, false, nil, result.Err.Error(), latency, 0, 0)
			s.opts.Recorder.RecordProblem(run.ID, "error", nodeID, result.Err.Error(), "")

			if IsRunFailure(result.Err.Kind) {
				return s.fail(run, result.Err)
			}

			next, found := s.selectEdge(run, nodeID, false, snapshot)
			if !found {
				return s.fail(run, NewRuntimeError(KindDeadEnd, nodeID, "node failed and no on-failure edge matched", result.Err))
			}
			run.CurrentNode = next
			continue

		default: // OutcomeSuccess
			if err := run.Memory.Merge(result.Outputs, node.requiredOutputs()); err != nil {
				rerr, _ := err.(*RuntimeError)
				if rerr == nil {
					rerr = NewRuntimeError(KindMissingRequiredOutput, nodeID, err.Error(), err)
				} else {
					rerr.NodeID = nodeID
				}
				s.opts.Recorder.RecordOutcome(run.ID, decisionID, false, result.Outputs, rerr.Error(), latency, 0, 0)
				s.opts.Recorder.RecordProblem(run.ID, "error", nodeID, rerr.Error(), "")
				return s.fail(run, rerr)
			}

			run.Visits.Increment(nodeID)
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordNodeVisit(run.ID, nodeID)
			}

			mergedView := run.Memory.Snapshot()
			s.opts.Recorder.RecordOutcome(run.ID, decisionID, true, result.Outputs, "node completed", latency, 0, 0)

			if s.graph.IsTerminal(nodeID) {
				run.Status = RunCompleted
				s.finishRun(run, true)
				return nil
			}

			// Pause nodes suspend on completion (§5 suspension point b),
			// distinct from an llm-tools node suspending mid-loop via
			// OutcomeSuspend: here the node has fully executed and its
			// outputs are already merged, but the run still yields control
			// back to the host until Resume is called.
			if s.graph.IsPause(nodeID) {
				run.Status = RunSuspended
				run.PauseNodeID = nodeID
				run.PausePayload = renderInputPayload(result.Outputs)
				if err := s.persistSnapshot(ctx, run); err != nil {
					s.opts.Recorder.RecordProblem(run.ID, "warning", nodeID, "failed to persist snapshot: "+err.Error(), "")
				}
				return nil
			}

			next, found := s.selectEdge(run, nodeID, true, mergedView)
			if !found {
				return s.fail(run, NewRuntimeError(KindDeadEnd, nodeID, "no outgoing edge matched after success", nil))
			}
			run.CurrentNode = next
			continue
		}
	}
}

func (s *Scheduler) fail(run *Run, err *RuntimeError) error {
	run.Status = RunFailed
	run.Err = err
	s.finishRun(run, false)
	return err
}

func (s *Scheduler) finishRun(run *Run, success bool) {
	run.EndedAt = time.Now()
	narrative := "run completed"
	if !success {
		narrative = "run failed"
		if run.Err != nil {
			narrative = run.Err.Error()
		}
	}
	s.opts.Recorder.EndRun(run.ID, success, narrative, run.Memory.Snapshot())

	s.mu.Lock()
	delete(s.cancelled, run.ID)
	s.mu.Unlock()

	if s.opts.Store != nil {
		_ = s.opts.Store.DeleteSnapshot(context.Background(), run.ID)
	}
}

// dispatch sends node to the executor matching its kind.
func (s *Scheduler) dispatch(ctx context.Context, run *Run, node *NodeSpec, view map[string]any) NodeResult {
	switch node.Kind {
	case KindFunction:
		return s.execFunction(ctx, node, view)
	case KindLLMGenerate:
		return s.execLLMGenerate(ctx, run, node, view)
	case KindLLMTools:
		return s.execLLMTools(ctx, run, node, view)
	case KindRouter:
		return s.execRouter(ctx, node, view)
	default:
		return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindValidation, node.ID, "unknown node kind "+string(node.Kind), nil)}
	}
}

// executeWithRetry dispatches node, retrying per its RetryPolicy (used for
// tool-transport reconnects and LLM-provider errors) while failures remain
// retryable and attempts remain.
func (s *Scheduler) executeWithRetry(ctx context.Context, run *Run, node *NodeSpec, view map[string]any) (NodeResult, time.Duration) {
	timeout := s.opts.DefaultNodeTimeout
	if node.Policy != nil && node.Policy.Timeout > 0 {
		timeout = node.Policy.Timeout
	}

	var result NodeResult
	var total time.Duration
	attempt := 0
	for {
		nodeCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		result = s.dispatch(nodeCtx, run, node, view)
		cancel()
		total += time.Since(start)

		if result.Outcome != OutcomeFailure {
			return result, total
		}
		if node.Policy == nil || node.Policy.RetryPolicy == nil {
			return result, total
		}
		rp := node.Policy.RetryPolicy
		if rp.Validate() != nil || rp.Retryable == nil || !rp.Retryable(result.Err) {
			return result, total
		}
		if attempt+1 >= rp.MaxAttempts {
			return result, total
		}

		delay := computeBackoff(attempt, rp.BaseDelay, rp.MaxDelay, nil)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, total
		case <-timer.C:
		}
		attempt++
	}
}

// selectEdge applies the §4.3 edge-evaluation rule: edges in priority order
// (forward descending, then feedback descending, ties by edge id), first
// whose condition fires wins.
func (s *Scheduler) selectEdge(run *Run, nodeID string, succeeded bool, view map[string]any) (string, bool) {
	for _, e := range s.graph.EdgesFrom(nodeID) {
		matched, err := e.matches(succeeded, view)
		if err != nil {
			s.opts.Recorder.RecordProblem(run.ID, "warning", nodeID, "edge "+e.ID+" predicate error: "+err.Error(), "")
			continue
		}
		if matched {
			return e.To, true
		}
	}
	return "", false
}

func (s *Scheduler) persistSnapshot(ctx context.Context, run *Run) error {
	if s.opts.Store == nil {
		return nil
	}
	entries := make([]store.TranscriptEntry, 0, len(run.Transcript))
	for _, m := range run.Transcript {
		entries = append(entries, store.TranscriptEntry{Role: m.Role, Content: m.Content})
	}
	return s.opts.Store.SaveSnapshot(ctx, store.RunSnapshot{
		RunID:        run.ID,
		GraphID:      s.graph.ID,
		MemoryPlane:  run.Memory.Snapshot(),
		VisitCounts:  run.Visits.Snapshot(),
		PauseNodeID:  run.PauseNodeID,
		PausePayload: run.PausePayload,
		Transcript:   entries,
		CreatedAt:    time.Now(),
	})
}

func (s *Scheduler) loadSnapshot(ctx context.Context, runID string) (*Run, error) {
	if s.opts.Store == nil {
		return nil, ErrNotFound
	}
	snap, err := s.opts.Store.LoadSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:           snap.RunID,
		GraphID:      snap.GraphID,
		Status:       RunSuspended,
		Memory:       NewMemoryPlane(snap.MemoryPlane),
		Visits:       NewVisitCounter(),
		CurrentNode:  snap.PauseNodeID,
		PauseNodeID:  snap.PauseNodeID,
		PausePayload: snap.PausePayload,
		StartedAt:    snap.CreatedAt,
		cost:         newCostTracker(snap.RunID),
	}
	run.Visits.Restore(snap.VisitCounts)
	for _, e := range snap.Transcript {
		run.Transcript = append(run.Transcript, TranscriptMessage{Role: e.Role, Content: e.Content})
	}
	return run, nil
}
