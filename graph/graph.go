package graph

import (
	"fmt"
	"sort"

	"github.com/agentgraph/agentgraph/graph/predicate"
)

// SuccessCriterion and Constraint describe the goal a graph pursues. They
// are carried through from the persisted document and surfaced to the
// decision recorder and host, but the scheduler does not interpret them.
type SuccessCriterion struct {
	ID          string
	Description string
	Metric      string
	Target      float64
	Weight      float64
}

type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "hard"
	ConstraintSoft ConstraintKind = "soft"
)

type Constraint struct {
	ID          string
	Description string
	Kind        ConstraintKind
	Category    string
}

type Goal struct {
	ID                string
	Name              string
	Description       string
	SuccessCriteria   []SuccessCriterion
	Constraints       []Constraint
}

// Graph is the immutable, validated description of a runnable workflow.
type Graph struct {
	ID      string
	Name    string
	Version string
	Goal    *Goal

	Nodes map[string]*NodeSpec
	Edges []*EdgeSpec

	// InitialInputKeys declares the keys the host is expected to supply in
	// the run's initial input payload. The loader's validator uses this to
	// satisfy input-key reachability checks for entry nodes.
	InitialInputKeys []string

	EntryPoints   map[string]string // symbolic name -> node id
	PauseNodes    map[string]struct{}
	TerminalNodes map[string]struct{}

	edgesBySource map[string][]*EdgeSpec
}

// New constructs and validates a Graph from its component parts. Callers
// building graphs programmatically (tests, the loader) should use this
// rather than constructing a Graph literal, since it compiles predicates
// and builds the source index.
func New(id, name, version string, goal *Goal, nodes []*NodeSpec, edges []*EdgeSpec,
	initialInputKeys []string, entryPoints map[string]string, pauseNodes, terminalNodes []string) (*Graph, error) {

	g := &Graph{
		ID:               id,
		Name:             name,
		Version:          version,
		Goal:             goal,
		Nodes:            make(map[string]*NodeSpec, len(nodes)),
		Edges:            edges,
		InitialInputKeys: initialInputKeys,
		EntryPoints:      entryPoints,
		PauseNodes:       make(map[string]struct{}, len(pauseNodes)),
		TerminalNodes:    make(map[string]struct{}, len(terminalNodes)),
		edgesBySource:    make(map[string][]*EdgeSpec),
	}

	for _, n := range nodes {
		if n.MaxVisits == 0 {
			// Per §3, default max visit count is 1; 0 explicitly means
			// unlimited. The loader applies the default of 1 only when a
			// document omits max_visits. New() is also used directly by
			// tests, which pass MaxVisits=1 explicitly for the common case;
			// 0 is left meaning unlimited here.
		}
		g.Nodes[n.ID] = n
	}
	for _, p := range pauseNodes {
		g.PauseNodes[p] = struct{}{}
	}
	for _, tnode := range terminalNodes {
		g.TerminalNodes[tnode] = struct{}{}
	}
	for _, e := range edges {
		g.edgesBySource[e.From] = append(g.edgesBySource[e.From], e)
	}

	if err := g.compile(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// compile parses every conditional edge's and router route's predicate
// source into an executable expression.
func (g *Graph) compile() error {
	for _, e := range g.Edges {
		if e.Condition != Conditional {
			continue
		}
		if e.Predicate == "" {
			return NewRuntimeError(KindValidation, e.From, "conditional edge "+e.ID+" has an empty predicate", nil)
		}
		expr, err := predicate.Parse(e.Predicate)
		if err != nil {
			return NewRuntimeError(KindValidation, e.From, "edge "+e.ID+": "+err.Error(), err)
		}
		e.compiled = expr
	}
	for _, n := range g.Nodes {
		if n.Kind != KindRouter {
			continue
		}
		for i := range n.Routes {
			r := &n.Routes[i]
			if r.When == "" {
				continue
			}
			expr, err := predicate.Parse(r.When)
			if err != nil {
				return NewRuntimeError(KindValidation, n.ID, "router route: "+err.Error(), err)
			}
			r.compiled = expr
		}
	}
	return nil
}

// EdgesFrom returns the edges leaving nodeID, sorted per the scheduler's
// priority rule: positive (forward) priorities descending, then negative
// (feedback) priorities descending, ties broken by edge id lexicographically.
func (g *Graph) EdgesFrom(nodeID string) []*EdgeSpec {
	edges := append([]*EdgeSpec(nil), g.edgesBySource[nodeID]...)
	sort.SliceStable(edges, func(i, j int) bool {
		fi, fj := edges[i], edges[j]
		iForward, jForward := fi.Priority >= 0, fj.Priority >= 0
		if iForward != jForward {
			return iForward // forward edges sort before feedback edges
		}
		if fi.Priority != fj.Priority {
			return fi.Priority > fj.Priority
		}
		return fi.ID < fj.ID
	})
	return edges
}

// IsPause reports whether nodeID is a pause node.
func (g *Graph) IsPause(nodeID string) bool {
	_, ok := g.PauseNodes[nodeID]
	return ok
}

// IsTerminal reports whether nodeID is a terminal node.
func (g *Graph) IsTerminal(nodeID string) bool {
	_, ok := g.TerminalNodes[nodeID]
	return ok
}

// Validate checks every fatal structural invariant from §4.1. It is called
// automatically by New, which the loader uses to build a Graph from a
// persisted document.
func (g *Graph) Validate() error {
	if len(g.EntryPoints) == 0 {
		return NewRuntimeError(KindValidation, "", "graph declares no entry points", nil)
	}

	for name, nodeID := range g.EntryPoints {
		if _, ok := g.Nodes[nodeID]; !ok {
			return NewRuntimeError(KindValidation, nodeID, fmt.Sprintf("entry point %q refers to undefined node", name), nil)
		}
	}

	for p := range g.PauseNodes {
		if _, ok := g.Nodes[p]; !ok {
			return NewRuntimeError(KindValidation, p, "pause node set refers to undefined node", nil)
		}
	}
	for t := range g.TerminalNodes {
		if _, ok := g.Nodes[t]; !ok {
			return NewRuntimeError(KindValidation, t, "terminal node set refers to undefined node", nil)
		}
		if _, isPause := g.PauseNodes[t]; isPause {
			return NewRuntimeError(KindValidation, t, "node is declared both pause and terminal", nil)
		}
	}

	seenEdgeIDs := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if _, dup := seenEdgeIDs[e.ID]; dup {
			return NewRuntimeError(KindValidation, e.From, "duplicate edge id "+e.ID, nil)
		}
		seenEdgeIDs[e.ID] = struct{}{}

		if _, ok := g.Nodes[e.From]; !ok {
			return NewRuntimeError(KindValidation, e.From, "edge "+e.ID+" has undefined source node", nil)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return NewRuntimeError(KindValidation, e.To, "edge "+e.ID+" has undefined target node", nil)
		}
		if e.Condition == Conditional && e.Predicate == "" {
			return NewRuntimeError(KindValidation, e.From, "conditional edge "+e.ID+" carries no predicate", nil)
		}
	}

	// No node may be both an entry point and the target of a positive-priority
	// forward edge from another node (feedback targeting an entry is allowed).
	entrySet := make(map[string]struct{}, len(g.EntryPoints))
	for _, nodeID := range g.EntryPoints {
		entrySet[nodeID] = struct{}{}
	}
	for _, e := range g.Edges {
		if e.Priority < 0 {
			continue
		}
		if _, isEntry := entrySet[e.To]; isEntry && e.From != e.To {
			return NewRuntimeError(KindValidation, e.To,
				fmt.Sprintf("entry node is also the target of forward edge %s from %s", e.ID, e.From), nil)
		}
	}

	// Fan-out check: multiple forward edges from the same source sharing the
	// top priority is an authoring error (§4.3, §9 open question resolved
	// against parallel execution).
	for nodeID := range g.Nodes {
		edges := g.edgesBySource[nodeID]
		best := map[int]int{}
		for _, e := range edges {
			if e.Priority >= 0 {
				best[e.Priority]++
			}
		}
		for prio, count := range best {
			if count > 1 {
				return NewRuntimeError(KindValidation, nodeID,
					fmt.Sprintf("node has %d forward edges sharing priority %d; fan-out is not supported", count, prio), nil)
			}
		}
	}

	// Input-key reachability: every non-nullable declared input key must be
	// either an output of some reachable predecessor, declared nullable on
	// this node, or present in InitialInputKeys.
	reachableOutputs := g.reachableOutputsByNode()
	initial := make(map[string]struct{}, len(g.InitialInputKeys))
	for _, k := range g.InitialInputKeys {
		initial[k] = struct{}{}
	}
	for _, n := range g.Nodes {
		available := reachableOutputs[n.ID]
		for _, key := range n.requiredInputs() {
			if n.isNullable(key) {
				continue
			}
			_, fromPredecessor := available[key]
			_, fromInitial := initial[key]
			if !fromPredecessor && !fromInitial {
				return NewRuntimeError(KindValidation, n.ID,
					fmt.Sprintf("input key %q is not produced by any reachable predecessor, declared nullable, or present in the initial payload", key), nil)
			}
		}
	}

	// Conditional edge predicates may only reference names that appear
	// somewhere as an output key or an initial input key. Router route
	// predicates are not checked here.
	allKnownKeys := make(map[string]struct{})
	for k := range initial {
		allKnownKeys[k] = struct{}{}
	}
	for _, n := range g.Nodes {
		for _, k := range n.OutputKeys {
			allKnownKeys[k] = struct{}{}
		}
	}
	for _, e := range g.Edges {
		if e.Condition != Conditional || e.compiled == nil {
			continue
		}
		for _, name := range e.compiled.Names() {
			if _, ok := allKnownKeys[name]; !ok {
				return NewRuntimeError(KindValidation, e.From,
					fmt.Sprintf("conditional edge %s predicate references unknown key %q", e.ID, name), nil)
			}
		}
	}

	return nil
}

// reachableOutputsByNode computes, for each node, the union of output keys
// produced by every ancestor reachable via any edge (forward or feedback),
// via a fixed-point propagation over the edge graph.
func (g *Graph) reachableOutputsByNode() map[string]map[string]struct{} {
	result := make(map[string]map[string]struct{}, len(g.Nodes))
	for id := range g.Nodes {
		result[id] = make(map[string]struct{})
	}

	changed := true
	for changed {
		changed = false
		for _, e := range g.Edges {
			fromNode, ok := g.Nodes[e.From]
			if !ok {
				continue
			}
			dst := result[e.To]
			for _, k := range fromNode.OutputKeys {
				if _, ok := dst[k]; !ok {
					dst[k] = struct{}{}
					changed = true
				}
			}
			// Propagate everything already reachable at From onward to To,
			// so multi-hop ancestors are visible (transitive closure).
			for k := range result[e.From] {
				if _, ok := dst[k]; !ok {
					dst[k] = struct{}{}
					changed = true
				}
			}
		}
	}
	return result
}
