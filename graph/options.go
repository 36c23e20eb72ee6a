package graph

import (
	"context"
	"time"

	"github.com/agentgraph/agentgraph/graph/cost"
	"github.com/agentgraph/agentgraph/graph/emit"
	"github.com/agentgraph/agentgraph/graph/metrics"
	"github.com/agentgraph/agentgraph/graph/model"
	"github.com/agentgraph/agentgraph/graph/recorder"
	"github.com/agentgraph/agentgraph/graph/store"
	"github.com/agentgraph/agentgraph/graph/tool"
)

// FunctionHandler is a host-registered callback backing a KindFunction node.
// It receives the node's input view (projected from the memory plane per
// NodeSpec.InputKeys) and returns the values to merge back in, keyed by the
// node's declared OutputKeys.
type FunctionHandler func(ctx context.Context, input map[string]any) (map[string]any, error)

// Functions is the registry of host callbacks the scheduler dispatches
// KindFunction nodes to, keyed by NodeSpec.ID. A node of kind KindFunction
// with no matching entry fails with KindValidation at Run time.
type Functions map[string]FunctionHandler

// Options configures a Scheduler. Zero values are valid except Functions,
// Model, and Tools, which must be supplied if the graph contains nodes of
// the corresponding kind.
type Options struct {
	// Functions backs every KindFunction node.
	Functions Functions

	// Model backs every KindLLMGenerate and KindLLMTools node.
	Model model.ChatModel

	// ModelName attributes LLM calls to a pricing entry in the cost
	// tracker (e.g. "gpt-4o"). ChatModel does not self-report which
	// model served a call, so this is a scheduler-wide label applied to
	// every LLM call the Scheduler makes.
	ModelName string

	// Tools backs every KindLLMTools node's tool calls.
	Tools *tool.Broker

	// Recorder receives decision/outcome/problem events (§4.7). Defaults
	// to a Recorder that discards events.
	Recorder *recorder.Recorder

	// Store persists run snapshots across suspend/resume (§4.6). If nil,
	// pause nodes still suspend in-memory but the run cannot survive a
	// process restart.
	Store store.Store

	// Emitter receives low-level scheduler events (node start/end,
	// routing decisions). Defaults to a no-op emitter.
	Emitter emit.Emitter

	// Metrics records Prometheus instrumentation. Optional.
	Metrics *metrics.PrometheusMetrics

	// DefaultNodeTimeout bounds a single node's execution when its
	// NodePolicy.Timeout is unset. Default 30s.
	DefaultNodeTimeout time.Duration

	// MaxToolTurns caps the number of LLM/tool round trips an llm-tools
	// node may take before the scheduler fails it with
	// KindLoopExhausted. Default 20.
	MaxToolTurns int
}

func (o *Options) setDefaults() {
	if o.Functions == nil {
		o.Functions = Functions{}
	}
	if o.Recorder == nil {
		o.Recorder = recorder.New()
	}
	if o.Emitter == nil {
		o.Emitter = emit.NewNullEmitter()
	}
	if o.DefaultNodeTimeout <= 0 {
		o.DefaultNodeTimeout = 30 * time.Second
	}
	if o.MaxToolTurns <= 0 {
		o.MaxToolTurns = 20
	}
	if o.ModelName == "" {
		o.ModelName = "unknown"
	}
}

// newCostTracker builds a fresh per-run cost tracker; CostTracker embeds a
// RunID so one instance cannot be shared across runs.
func newCostTracker(runID string) *cost.CostTracker {
	return cost.NewCostTracker(runID, "USD")
}
