package graph

// NodeKind enumerates the four executor variants a node can be bound to.
type NodeKind string

const (
	KindFunction    NodeKind = "function"
	KindLLMGenerate NodeKind = "llm-generate"
	KindLLMTools    NodeKind = "llm-tools"
	KindRouter      NodeKind = "router"
)

// RouterRoute is one branch of a router node: When is a predicate source
// string evaluated against the node's input view; the first route whose
// predicate holds wins. An empty When always matches and should be listed
// last as the default branch.
type RouterRoute struct {
	When  string
	Value string

	compiled interface {
		Eval(map[string]any) (bool, error)
	}
}

// NodeSpec is the static, persisted description of a node. Nodes own no
// state; all state lives in the run's memory plane.
type NodeSpec struct {
	ID   string
	Name string
	Kind NodeKind

	InputKeys       []string
	OutputKeys      []string
	NullableOutputs []string

	Tools        []string
	SystemPrompt string
	ClientFacing bool
	MaxVisits    int // 0 = unlimited, default 1 is applied by the loader

	Routes []RouterRoute // only meaningful for KindRouter

	Policy *NodePolicy
}

func (n *NodeSpec) isNullable(key string) bool {
	for _, k := range n.NullableOutputs {
		if k == key {
			return true
		}
	}
	return false
}

// requiredOutputs returns OutputKeys minus NullableOutputs.
func (n *NodeSpec) requiredOutputs() []string {
	out := make([]string, 0, len(n.OutputKeys))
	for _, k := range n.OutputKeys {
		if !n.isNullable(k) {
			out = append(out, k)
		}
	}
	return out
}

// requiredInputs returns InputKeys unchanged: every declared InputKey is
// required, per §3.
func (n *NodeSpec) requiredInputs() []string {
	return n.InputKeys
}

// inputView projects a memory-plane snapshot down to this node's declared
// input keys, for use as the executor's Input parameter.
func (n *NodeSpec) inputView(snapshot map[string]any) map[string]any {
	view := make(map[string]any, len(n.InputKeys))
	for _, k := range n.InputKeys {
		if v, ok := snapshot[k]; ok {
			view[k] = v
		}
	}
	return view
}

// Outcome is what a node executor returns to the scheduler.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeSuspend
)

// PauseToken carries the state needed to persist and later resume a
// suspended node: the message shown to the human and the in-progress LLM
// transcript, if any.
type PauseToken struct {
	Message    string
	Transcript []TranscriptMessage
}

// TranscriptMessage is a provider-agnostic record of one turn in an
// LLM-tools node's conversation, suitable for JSON persistence.
type TranscriptMessage struct {
	Role    string
	Content string
}

// NodeResult is the uniform return value of every node executor.
type NodeResult struct {
	Outcome Outcome
	Outputs map[string]any
	Err     *RuntimeError
	Pause   *PauseToken
}
