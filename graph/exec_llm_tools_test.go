package graph

import (
	"context"
	"testing"

	"github.com/agentgraph/agentgraph/graph/model"
)

func TestMixesSetOutputWithToolCalls(t *testing.T) {
	if mixesSetOutputWithToolCalls(nil) {
		t.Fatal("no calls should not count as mixed")
	}
	if mixesSetOutputWithToolCalls([]model.ToolCall{{Name: "set-output"}}) {
		t.Fatal("a lone set-output call is not mixed")
	}
	if mixesSetOutputWithToolCalls([]model.ToolCall{{Name: "search"}}) {
		t.Fatal("a lone real tool call is not mixed")
	}
	if !mixesSetOutputWithToolCalls([]model.ToolCall{{Name: "set-output"}, {Name: "search"}}) {
		t.Fatal("set-output alongside a real tool call should be detected as mixed")
	}
}

func TestExecLLMToolsRejectsMixedSetOutputAndToolCall(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{
			{Name: "set-output", Input: map[string]interface{}{"name": "x", "value": "1"}},
			{Name: "search", Input: map[string]interface{}{"query": "x"}},
		}},
	}}
	sched := NewScheduler(nil, Options{Model: mock})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"x"}}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeFailure || result.Err.Kind != KindLLMError {
		t.Fatalf("expected KindLLMError for a mixed turn, got %v", result.Err)
	}
}

func TestExecLLMToolsClientFacingSuspendsOnPlainTextWithMissingOutputs(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "what should I do next?"}}}
	sched := NewScheduler(nil, Options{Model: mock})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"decision"}, ClientFacing: true}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeSuspend {
		t.Fatalf("expected suspend, got %v: %v", result.Outcome, result.Err)
	}
	if result.Pause == nil || result.Pause.Message != "what should I do next?" {
		t.Fatalf("expected pause token carrying the model's message, got %v", result.Pause)
	}
}

func TestExecLLMToolsNonClientFacingFailsOnMissingOutputs(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "here is my answer in prose"}}}
	sched := NewScheduler(nil, Options{Model: mock})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"decision"}, ClientFacing: false}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeFailure || result.Err.Kind != KindMissingRequiredOutput {
		t.Fatalf("expected KindMissingRequiredOutput, got %v", result.Err)
	}
}

func TestExecLLMToolsCommitsOutputsOnceSatisfied(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: "set-output", Input: map[string]interface{}{"name": "decision", "value": "approve"}}}},
		{Text: "done"},
	}}
	sched := NewScheduler(nil, Options{Model: mock})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"decision"}, ClientFacing: true}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success once required outputs are set, got %v: %v", result.Outcome, result.Err)
	}
	if result.Outputs["decision"] != "approve" {
		t.Fatalf("expected decision=approve, got %v", result.Outputs["decision"])
	}
}

func TestExecLLMToolsUnknownToolNameIsReportedAndLoopContinues(t *testing.T) {
	responses := make([]model.ChatOut, 0, 21)
	for i := 0; i < 20; i++ {
		responses = append(responses, model.ChatOut{ToolCalls: []model.ToolCall{{Name: "not-registered"}}})
	}
	mock := &model.MockChatModel{Responses: responses}
	sched := NewScheduler(nil, Options{Model: mock, MaxToolTurns: 20})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"decision"}}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeFailure || result.Err.Kind != KindLoopExhausted {
		t.Fatalf("expected KindLoopExhausted once MaxToolTurns is exceeded, got %v", result.Err)
	}
}

func TestExecLLMToolsNoModelConfiguredFails(t *testing.T) {
	sched := NewScheduler(nil, Options{})
	node := &NodeSpec{ID: "n1", OutputKeys: []string{"x"}}
	run := newRun("r1", "g1", "n1", nil)

	result := sched.execLLMTools(context.Background(), run, node, nil)
	if result.Outcome != OutcomeFailure || result.Err.Kind != KindValidation {
		t.Fatalf("expected KindValidation, got %v", result.Err)
	}
}
