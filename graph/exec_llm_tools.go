package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentgraph/agentgraph/graph/model"
	"github.com/agentgraph/agentgraph/graph/tool"
)

const setOutputToolName = "set-output"

var setOutputToolSpec = model.ToolSpec{
	Name:        setOutputToolName,
	Description: "Record a value under the given output key. Call this once per output key your final answer must cover, with no other tool calls in the same turn.",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "description": "the output key to set"},
			"value": map[string]interface{}{"description": "the value to record"},
		},
		"required": []string{"name", "value"},
	},
}

// execLLMTools drives the multi-turn event loop described in §4.4: repeated
// LLM calls against the node's permitted tool set, with the set-output
// pseudo-tool buffering the node's eventual outputs and a plain-text,
// no-tool-calls turn either committing those outputs or, for a
// client-facing node with outputs still missing, suspending to show the
// human the model's message.
//
// run.Transcript carries an in-progress conversation across a suspend/resume
// cycle; the scheduler appends the resume reply to it before calling back
// in, so this executor always starts from whatever transcript it is given.
func (s *Scheduler) execLLMTools(ctx context.Context, run *Run, node *NodeSpec, input map[string]any) NodeResult {
	if s.opts.Model == nil {
		return NodeResult{
			Outcome: OutcomeFailure,
			Err:     NewRuntimeError(KindValidation, node.ID, "no chat model configured for llm-tools node", nil),
		}
	}

	transcript := run.Transcript
	if len(transcript) == 0 {
		prompt, err := renderTemplate(node.SystemPrompt, input)
		if err != nil {
			return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindMissingInput, node.ID, err.Error(), err)}
		}
		transcript = []TranscriptMessage{
			{Role: model.RoleSystem, Content: prompt},
			{Role: model.RoleUser, Content: renderInputPayload(input)},
		}
	}

	var toolSpecs []tool.Spec
	if s.opts.Tools != nil {
		toolSpecs = s.opts.Tools.Specs(node.Tools)
	}
	chatTools := make([]model.ToolSpec, 0, len(toolSpecs)+1)
	for _, sp := range toolSpecs {
		chatTools = append(chatTools, model.ToolSpec{Name: sp.Name, Description: sp.Description, Schema: sp.Schema})
	}
	chatTools = append(chatTools, setOutputToolSpec)

	outputs := map[string]any{}
	required := node.requiredOutputs()

	for turn := 0; turn < s.opts.MaxToolTurns; turn++ {
		out, err := s.opts.Model.Chat(ctx, toModelMessages(transcript), chatTools)
		if err != nil {
			run.Transcript = nil
			if ctx.Err() != nil {
				return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindTimeout, node.ID, "llm-tools call timed out", ctx.Err())}
			}
			return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindLLMError, node.ID, "chat model call failed: "+err.Error(), err)}
		}
		s.recordLLMUsage(run, node, out.Usage.InputTokens, out.Usage.OutputTokens)

		if len(out.ToolCalls) == 0 {
			transcript = append(transcript, TranscriptMessage{Role: model.RoleAssistant, Content: out.Text})

			if missing := missingKeys(outputs, required); len(missing) == 0 {
				run.Transcript = nil
				return NodeResult{Outcome: OutcomeSuccess, Outputs: outputs}
			} else if node.ClientFacing {
				run.Transcript = transcript
				return NodeResult{
					Outcome: OutcomeSuspend,
					Pause:   &PauseToken{Message: out.Text, Transcript: transcript},
				}
			} else {
				run.Transcript = nil
				return NodeResult{
					Outcome: OutcomeFailure,
					Err:     NewRuntimeError(KindMissingRequiredOutput, node.ID, "required outputs missing: "+strings.Join(missing, ", "), nil),
				}
			}
		}

		if mixesSetOutputWithToolCalls(out.ToolCalls) {
			run.Transcript = nil
			return NodeResult{
				Outcome: OutcomeFailure,
				Err:     NewRuntimeError(KindLLMError, node.ID, "set-output must appear in a turn with no other tool calls", nil),
			}
		}

		transcript = append(transcript, TranscriptMessage{Role: model.RoleAssistant, Content: describeToolCalls(out.ToolCalls)})

		for _, call := range out.ToolCalls {
			if call.Name == setOutputToolName {
				name, _ := call.Input["name"].(string)
				if name == "" {
					run.Transcript = nil
					return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindValidation, node.ID, "set-output called without a name", nil)}
				}
				outputs[name] = call.Input["value"]
				transcript = append(transcript, TranscriptMessage{Role: model.RoleUser, Content: fmt.Sprintf("set-output %s recorded", name)})
				continue
			}

			spec, ok := findToolSpec(toolSpecs, call.Name)
			if !ok {
				transcript = append(transcript, TranscriptMessage{Role: model.RoleUser, Content: fmt.Sprintf("tool %q is not available to this node", call.Name)})
				continue
			}

			if err := tool.ValidateArgs(spec, call.Input); err != nil {
				s.recordToolOutcome(call.Name, "tool_error")
				transcript = append(transcript, TranscriptMessage{Role: model.RoleUser, Content: "tool error: " + err.Error()})
				continue
			}

			result, err := s.opts.Tools.Invoke(ctx, call.Name, call.Input, uuid.NewString())
			if err != nil {
				run.Transcript = nil
				switch {
				case errors.Is(err, tool.ErrCallTimeout):
					s.recordToolOutcome(call.Name, "timeout")
					return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindTimeout, node.ID, "tool call timed out: "+call.Name, err)}
				case errors.Is(err, tool.ErrTransportLost):
					s.recordToolOutcome(call.Name, "transport_lost")
					return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindToolTransportLost, node.ID, "tool transport lost: "+call.Name, err)}
				default:
					s.recordToolOutcome(call.Name, "tool_error")
					return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindToolError, node.ID, "tool invocation failed: "+call.Name, err)}
				}
			}

			if result.IsError {
				s.recordToolOutcome(call.Name, "tool_error")
				transcript = append(transcript, TranscriptMessage{Role: model.RoleUser, Content: "tool error: " + result.ErrorMessage})
				continue
			}
			s.recordToolOutcome(call.Name, "ok")
			transcript = append(transcript, TranscriptMessage{Role: model.RoleUser, Content: renderInputPayload(result.Value)})
		}
	}

	run.Transcript = nil
	return NodeResult{Outcome: OutcomeFailure, Err: NewRuntimeError(KindLoopExhausted, node.ID, "exceeded max tool turns", nil)}
}

// mixesSetOutputWithToolCalls reports whether calls contains both a
// set-output call and at least one other tool call. §9 treats such a turn
// as malformed output rather than processing the calls it can.
func mixesSetOutputWithToolCalls(calls []model.ToolCall) bool {
	hasSetOutput, hasOther := false, false
	for _, c := range calls {
		if c.Name == setOutputToolName {
			hasSetOutput = true
		} else {
			hasOther = true
		}
	}
	return hasSetOutput && hasOther
}

func missingKeys(have map[string]any, required []string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func findToolSpec(specs []tool.Spec, name string) (tool.Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return tool.Spec{}, false
}

func describeToolCalls(calls []model.ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	return "calling: " + strings.Join(names, ", ")
}

func toModelMessages(transcript []TranscriptMessage) []model.Message {
	out := make([]model.Message, 0, len(transcript))
	for _, m := range transcript {
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// recordToolOutcome records a tool invocation outcome in metrics. The
// broker's Specs() does not expose which server owns a tool, so invocations
// are recorded without a server label.
func (s *Scheduler) recordToolOutcome(toolName, outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordToolInvocation("", toolName, outcome)
	}
}
