package graph

import "context"

// execRouter evaluates a router node's routes in declared order against the
// input view; the first route whose predicate holds (or the first route
// with an empty When, the authoring convention for a default branch) wins.
// The chosen route's Value is written to the node's sole declared output
// key, which downstream conditional edges consult. No LLM call, no tools.
func (s *Scheduler) execRouter(_ context.Context, node *NodeSpec, input map[string]any) NodeResult {
	if len(node.OutputKeys) == 0 {
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindValidation, node.ID, "router node declares no output key to write its routing decision to", nil),
		}
	}
	outputKey := node.OutputKeys[0]

	for _, route := range node.Routes {
		if route.When == "" {
			return NodeResult{Outcome: OutcomeSuccess, Outputs: map[string]any{outputKey: route.Value}}
		}
		if route.compiled == nil {
			return NodeResult{
				Outcome: OutcomeFailure,
				Err:     NewRuntimeError(KindValidation, node.ID, "router route has no compiled predicate", nil),
			}
		}
		matched, err := route.compiled.Eval(input)
		if err != nil {
			return NodeResult{
				Outcome: OutcomeFailure,
				Err:     NewRuntimeError(KindValidation, node.ID, "router route predicate evaluation failed: "+err.Error(), err),
			}
		}
		if matched {
			return NodeResult{Outcome: OutcomeSuccess, Outputs: map[string]any{outputKey: route.Value}}
		}
	}

	return NodeResult{
		Outcome: OutcomeFailure,
		Err:     NewRuntimeError(KindValidation, node.ID, "no router route matched and no default route declared", nil),
	}
}
