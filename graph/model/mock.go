package model

import (
	"context"
	"sync"
)

// MockChatModel is the ChatModel used by the scheduler's executor tests to
// drive llm-generate and llm-tools nodes deterministically, without a live
// provider. A multi-turn llm-tools scenario sets Responses to the full
// sequence of turns it expects the node to take (tool call, then another
// tool call, then a plain-text close), and asserts on CallCount and the
// recorded Calls to confirm the executor built the right transcript.
//
// Example: a node that should call a tool once, then finish.
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{
//	        {ToolCalls: []ToolCall{{Name: "set-output", Input: map[string]interface{}{"name": "answer", "value": "42"}}}},
//	        {Text: "done"},
//	    },
//	}
//
// Example with error injection, for exercising a node's failure path:
//
//	mock := &MockChatModel{Err: errors.New("upstream unavailable")}
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	// Each call to Chat() returns the next response in order.
	// If all responses are consumed, the last response repeats.
	Responses []ChatOut

	// Err, if set, will be returned by Chat() instead of a response.
	Err error

	// Calls tracks the history of all Chat() invocations.
	// Useful for verifying that nodes called the model with expected inputs.
	Calls []MockChatCall

	mu        sync.Mutex // Protects concurrent access to Calls and response index
	callIndex int        // Tracks which response to return next
}

// MockChatCall records a single invocation of Chat().
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements the ChatModel interface.
//
// Returns:
//   - The next response from Responses (or repeats the last response)
//   - Or Err if configured
//
// Always records the call in Calls history regardless of success/failure.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	// Check context cancellation first (before acquiring lock)
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Record the call
	m.Calls = append(m.Calls, MockChatCall{
		Messages: messages,
		Tools:    tools,
	})

	// Return error if configured
	if m.Err != nil {
		return ChatOut{}, m.Err
	}

	// Return empty response if no responses configured
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	// Get the current response
	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1 // Repeat last response
	} else {
		m.callIndex++ // Advance to next response
	}

	return m.Responses[idx], nil
}

// Reset clears the call history and resets the response index, for reusing
// one mock across several scheduler runs in the same test.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat() has been called, e.g. to
// confirm an llm-tools node took the expected number of turns.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
