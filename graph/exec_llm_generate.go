package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentgraph/agentgraph/graph/model"
)

// execLLMGenerate renders the node's system prompt against the input view,
// makes one LLM call, and parses the response into the node's declared
// output shape per §4.4: a single output key takes the raw response text; a
// node declaring more than one output key expects the model to reply with a
// JSON object whose fields cover those keys.
func (s *Scheduler) execLLMGenerate(ctx context.Context, run *Run, node *NodeSpec, input map[string]any) NodeResult {
	if s.opts.Model == nil {
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindValidation, node.ID, "no chat model configured for llm-generate node", nil),
		}
	}

	prompt, err := renderTemplate(node.SystemPrompt, input)
	if err != nil {
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindMissingInput, node.ID, err.Error(), err),
		}
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: prompt},
		{Role: model.RoleUser, Content: renderInputPayload(input)},
	}

	out, err := s.opts.Model.Chat(ctx, messages, nil)
	if err != nil {
		if ctx.Err() != nil {
			return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindTimeout, node.ID, "llm-generate call timed out", ctx.Err())}
		}
		return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindLLMError, node.ID, "chat model call failed: "+err.Error(), err)}
	}

	s.recordLLMUsage(run, node, out.Usage.InputTokens, out.Usage.OutputTokens)

	outputs, err := parseGenerateOutput(node, out.Text)
	if err != nil {
		return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindLLMError, node.ID, err.Error(), err)}
	}
	return NodeResult{Outcome: OutcomeSuccess, Outputs: outputs}
}

func parseGenerateOutput(node *NodeSpec, text string) (map[string]any, error) {
	required := node.requiredOutputs()

	if len(node.OutputKeys) <= 1 {
		outputs := map[string]any{}
		if len(node.OutputKeys) == 1 {
			outputs[node.OutputKeys[0]] = strings.TrimSpace(text)
		}
		return outputs, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("response is not a JSON object covering declared output keys: %w", err)
	}
	outputs := map[string]any{}
	for _, k := range node.OutputKeys {
		if v, ok := parsed[k]; ok {
			outputs[k] = v
		}
	}
	for _, k := range required {
		if _, ok := outputs[k]; !ok {
			return nil, fmt.Errorf("response JSON is missing required output key %q", k)
		}
	}
	return outputs, nil
}

// renderInputPayload serializes a node's input view as the first user
// message of a generate or tools call.
func renderInputPayload(input map[string]any) string {
	b, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(b)
}

// recordLLMUsage attributes token usage to the run's cost tracker and the
// scheduler's metrics. Callers pass model.ChatOut.Usage verbatim; a
// provider or mock that never populates Usage attributes the call at zero
// tokens rather than failing the node.
func (s *Scheduler) recordLLMUsage(run *Run, node *NodeSpec, tokensIn, tokensOut int) {
	if run.cost != nil {
		_ = run.cost.RecordLLMCall(s.opts.ModelName, tokensIn, tokensOut, node.ID)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordLLMTokens(run.ID, node.ID, tokensIn, tokensOut)
	}
}
