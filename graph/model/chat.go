// Package model defines the LLM chat interface used by the llm-generate
// and llm-tools node executors.
package model

import "context"

// ChatModel is the interface an llm-generate or llm-tools node executor
// calls once per node visit (llm-tools calls it once per tool-turn, up to
// Options.MaxToolTurns).
//
// Implementations adapt a specific provider's SDK to this shape: translate
// Message history and ToolSpec catalogues into the provider's wire format,
// issue the request, and translate the response back into ChatOut. The
// anthropic, openai, and google subpackages are the adapters shipped with
// this module; MockChatModel in this package is the test double used by
// the scheduler's executor tests.
//
// Implementations must respect ctx cancellation: execLLMGenerate and
// execLLMTools report a Chat error as KindTimeout when ctx.Err() is set
// and KindLLMError otherwise, so a provider that ignores ctx turns a
// timeout into a misclassified, non-recoverable failure.
type ChatModel interface {
	// Chat sends the accumulated conversation to the model and returns its
	// reply. tools is nil for an llm-generate node (it never offers tool
	// calls) and the node's resolved ToolSpec catalogue for an llm-tools
	// node. The executor folds the returned ChatOut back into the node's
	// transcript: Text alone may satisfy the node's outputs directly
	// (llm-generate) or surface as a client-facing pause message
	// (llm-tools); ToolCalls are dispatched through the tool broker, with
	// their results appended as the next turn's messages.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in the conversation passed to Chat. The llm-generate
// executor sends a single system message built from the node's
// SystemPrompt; the llm-tools executor grows this slice by one assistant
// message (the model's prior reply) and one user message (tool results)
// per turn of its loop.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string

	// Content is the message text. Empty for an assistant message that
	// only carries tool calls.
	Content string
}

// Role constants for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes one tool an llm-tools node has made available to the
// model for the current turn, derived from tool.Broker.Specs for the
// node's declared Tools plus the built-in set-output pseudo-tool the
// executor injects so the model can commit a node output without a real
// tool round-trip.
type ToolSpec struct {
	// Name must match a tool the broker can invoke, or "set-output".
	Name string

	// Description is shown to the model to help it decide when to call
	// the tool.
	Description string

	// Schema is the tool's input parameters as a JSON Schema document,
	// validated by tool.ValidateArgs before invocation.
	Schema map[string]interface{}
}

// ChatOut is the model's reply for one turn.
type ChatOut struct {
	// Text is the model's natural-language reply. For an llm-generate
	// node with a single output key, it becomes that key's value
	// verbatim (trimmed); with multiple output keys it is parsed as a
	// JSON object. For an llm-tools node, plain text with no ToolCalls
	// ends the turn loop: success if required outputs are already set,
	// a client-facing suspend if the node allows it, or a failure
	// otherwise.
	Text string

	// ToolCalls are the tools the model wants invoked before it will
	// continue. Mixing a "set-output" call with any other tool call in
	// the same turn is rejected as KindLLMError.
	ToolCalls []ToolCall

	// Usage reports the token counts the provider billed for this call, if
	// it reported any. A zero Usage (the default for a provider or mock
	// that doesn't populate it) attributes the call to its run's
	// cost.CostTracker at zero cost rather than failing the node.
	Usage Usage
}

// Usage holds the token counts of a single Chat call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall is one invocation the model is requesting. The executor looks
// Name up against the node's broker-resolved tools (or handles it inline
// if Name is "set-output"), validates Input against the matching
// ToolSpec.Schema, and appends the result to the transcript as the next
// turn's input.
type ToolCall struct {
	// Name must match a ToolSpec.Name offered on this turn.
	Name string

	// Input holds the call arguments, shaped per ToolSpec.Schema. Nil for
	// tools that take no arguments.
	Input map[string]interface{}
}
