package graph

import "github.com/agentgraph/agentgraph/graph/predicate"

// Condition names the circumstance under which an edge fires.
type Condition string

const (
	OnSuccess   Condition = "on-success"
	OnFailure   Condition = "on-failure"
	Always      Condition = "always"
	Conditional Condition = "conditional"
)

// EdgeSpec connects two nodes. Positive Priority marks a forward edge
// (evaluated first, in decreasing order); negative Priority marks a
// feedback edge (loops back to an earlier node).
type EdgeSpec struct {
	ID        string
	From      string
	To        string
	Condition Condition
	Predicate string // source text, only meaningful when Condition == Conditional
	Priority  int

	compiled *predicate.Expr // set by Graph.compile
}

// matches reports whether the edge's condition fires given the just-observed
// outcome (success/failure) and, for conditional edges, the post-merge
// memory-plane view.
func (e *EdgeSpec) matches(succeeded bool, view map[string]any) (bool, error) {
	switch e.Condition {
	case OnSuccess:
		return succeeded, nil
	case OnFailure:
		return !succeeded, nil
	case Always:
		return true, nil
	case Conditional:
		if e.compiled == nil {
			return false, NewRuntimeError(KindValidation, e.From, "conditional edge "+e.ID+" has no compiled predicate", nil)
		}
		return e.compiled.Eval(view)
	default:
		return false, NewRuntimeError(KindValidation, e.From, "unknown edge condition "+string(e.Condition), nil)
	}
}
