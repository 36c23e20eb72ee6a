package graph

import "context"

// execFunction dispatches a KindFunction node to its registered host
// callback. Per §4.4: "Failure if the callback raises or returns an
// ill-typed result" — both are surfaced as KindValidation, since a function
// node's callback is itself part of the graph's static contract, no
// different in kind from a malformed edge or node declaration.
func (s *Scheduler) execFunction(ctx context.Context, node *NodeSpec, input map[string]any) NodeResult {
	handler, ok := s.opts.Functions[node.ID]
	if !ok {
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindValidation, node.ID, "no function handler registered for this node", nil),
		}
	}

	outputs, err := handler(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return NodeResult{
				Outcome: OutcomeFailure,
				Err:     NewRuntimeError(KindTimeout, node.ID, "function node timed out", ctx.Err()),
			}
		}
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindValidation, node.ID, "function callback failed: "+err.Error(), err),
		}
	}
	if outputs == nil {
		outputs = map[string]any{}
	}
	return NodeResult{Outcome: OutcomeSuccess, Outputs: outputs}
}
