// Package cost tracks the USD cost of LLM calls made by llm-generate and
// llm-tools nodes, attributed per run and per model.
package cost

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing defines input and output token costs for LLM models.
// Prices are in USD per 1M tokens (per million tokens).
type ModelPricing struct {
	InputPer1M  float64 // Cost per 1M input tokens in USD
	OutputPer1M float64 // Cost per 1M output tokens in USD
}

// defaultModelPricing covers the default model of each ChatModel adapter
// this module ships (anthropic.NewChatModel, openai.NewChatModel,
// google.NewChatModel), plus their immediate predecessors so a run.Options
// pinning an older ModelName still gets a real cost instead of zero.
// Prices are in USD per 1M tokens, current as of 2025-01-01.
var defaultModelPricing = map[string]ModelPricing{
	// OpenAI: openai.NewChatModel defaults to gpt-4o.
	"gpt-4o": {
		InputPer1M:  2.50,
		OutputPer1M: 10.00,
	},
	"gpt-4o-mini": {
		InputPer1M:  0.15,
		OutputPer1M: 0.60,
	},
	"gpt-4-turbo": {
		InputPer1M:  10.00,
		OutputPer1M: 30.00,
	},
	"gpt-3.5-turbo": {
		InputPer1M:  0.50,
		OutputPer1M: 1.50,
	},

	// Anthropic: anthropic.NewChatModel defaults to claude-sonnet-4-5-20250929.
	"claude-sonnet-4-5-20250929": {
		InputPer1M:  3.00,
		OutputPer1M: 15.00,
	},
	"claude-3-5-sonnet-20241022": {
		InputPer1M:  3.00,
		OutputPer1M: 15.00,
	},
	"claude-3-opus-20240229": {
		InputPer1M:  15.00,
		OutputPer1M: 75.00,
	},
	"claude-3-haiku-20240307": {
		InputPer1M:  0.25,
		OutputPer1M: 1.25,
	},

	// Google: google.NewChatModel defaults to gemini-2.5-flash.
	"gemini-2.5-flash": {
		InputPer1M:  0.30,
		OutputPer1M: 2.50,
	},
	"gemini-1.5-pro": {
		InputPer1M:  1.25,
		OutputPer1M: 5.00,
	},
	"gemini-1.5-flash": {
		InputPer1M:  0.075,
		OutputPer1M: 0.30,
	},
}

// LLMCall represents a single LLM API invocation with token usage and cost.
type LLMCall struct {
	Model        string    // Model identifier (e.g., "gpt-4o", "claude-3-sonnet")
	InputTokens  int       // Number of input tokens consumed
	OutputTokens int       // Number of output tokens generated
	CostUSD      float64   // Calculated cost in USD
	Timestamp    time.Time // When the call was made
	NodeID       string    // Node that made the call (optional)
}

// CostTracker accumulates the USD cost of every LLM call a run's
// llm-generate and llm-tools nodes make. Every Run owns one (run.go's
// newRun calls newCostTracker), execLLMGenerate records each Model.Chat
// call against it, and Scheduler.Status surfaces the running total as
// RunStatusInfo.CostUSD so a host can watch spend without waiting for the
// run to finish.
//
// Thread-safe: all methods take the tracker's mutex, since a run's
// executors and a concurrent Status() call may touch it at once.
type CostTracker struct {
	// RunID associates costs with a specific workflow execution
	RunID string

	// Currency is the cost unit (e.g., "USD")
	Currency string

	// Pricing maps model names to their input/output token costs
	Pricing map[string]ModelPricing

	// Calls records all LLM invocations with full details
	Calls []LLMCall

	// TotalCost accumulates all costs in the specified currency
	TotalCost float64

	// ModelCosts tracks costs per model for attribution
	ModelCosts map[string]float64

	// InputTokens counts total input tokens across all calls
	InputTokens int64

	// OutputTokens counts total output tokens across all calls
	OutputTokens int64

	// CreatedAt marks when cost tracking began
	CreatedAt time.Time

	// Mutex protects concurrent access to tracker state
	mu sync.RWMutex

	// enabled controls whether cost tracking is active
	enabled bool
}

// NewCostTracker returns a tracker seeded with defaultModelPricing, scoped
// to runID.
func NewCostTracker(runID, currency string) *CostTracker {
	return &CostTracker{
		RunID:      runID,
		Currency:   currency,
		Pricing:    defaultModelPricing, // Use static pricing table
		Calls:      make([]LLMCall, 0, 100),
		ModelCosts: make(map[string]float64),
		CreatedAt:  time.Now(),
		enabled:    true,
	}
}

// RecordLLMCall records one Model.Chat invocation made while executing
// nodeID. A model absent from the pricing table (a node pinned to one the
// tracker doesn't know) is still recorded, at zero cost, rather than
// rejected — an llm-generate node's success must never hinge on pricing
// data being current.
func (ct *CostTracker) RecordLLMCall(model string, inputTokens, outputTokens int, nodeID string) error {
	if !ct.enabled {
		return nil
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	// Lookup pricing for this model
	pricing, ok := ct.Pricing[model]
	if !ok {
		// Model not in pricing table - still record but with zero cost
		pricing = ModelPricing{InputPer1M: 0, OutputPer1M: 0}
	}

	// Calculate cost: (tokens / 1M) * price_per_1M
	inputCost := (float64(inputTokens) / 1_000_000.0) * pricing.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000.0) * pricing.OutputPer1M
	totalCost := inputCost + outputCost

	// Record the call
	call := LLMCall{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      totalCost,
		Timestamp:    time.Now(),
		NodeID:       nodeID,
	}
	ct.Calls = append(ct.Calls, call)

	// Update cumulative totals
	ct.TotalCost += totalCost
	ct.ModelCosts[model] += totalCost
	ct.InputTokens += int64(inputTokens)
	ct.OutputTokens += int64(outputTokens)

	return nil
}

// GetTotalCost returns the run's cumulative cost so far, in Currency. This
// is what Scheduler.Status reports as RunStatusInfo.CostUSD.
func (ct *CostTracker) GetTotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.TotalCost
}

// GetCostByModel breaks the cumulative cost down per model name, useful
// when a graph mixes providers across nodes (e.g. a cheap router node on
// one model, a client-facing llm-tools node on another).
func (ct *CostTracker) GetCostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	// Return a copy to prevent external mutation
	costs := make(map[string]float64, len(ct.ModelCosts))
	for model, cost := range ct.ModelCosts {
		costs[model] = cost
	}
	return costs
}

// GetCallHistory returns every recorded call, in the order the nodes made
// them.
func (ct *CostTracker) GetCallHistory() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	// Return a copy to prevent external mutation
	calls := make([]LLMCall, len(ct.Calls))
	copy(calls, ct.Calls)
	return calls
}

// GetTokenUsage returns the run's cumulative input and output token counts.
func (ct *CostTracker) GetTokenUsage() (inputTokens, outputTokens int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.InputTokens, ct.OutputTokens
}

// SetCustomPricing overrides the default per-model rate, for enterprise
// pricing or a model defaultModelPricing doesn't carry yet.
func (ct *CostTracker) SetCustomPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.Pricing == nil {
		ct.Pricing = make(map[string]ModelPricing)
	}
	ct.Pricing[model] = ModelPricing{
		InputPer1M:  inputPer1M,
		OutputPer1M: outputPer1M,
	}
}

// Disable temporarily disables cost tracking (useful for testing).
func (ct *CostTracker) Disable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = false
}

// Enable re-enables cost tracking after Disable().
func (ct *CostTracker) Enable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = true
}

// Reset clears all recorded data and resets cumulative totals.
// Preserves pricing configuration.
func (ct *CostTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.Calls = make([]LLMCall, 0, 100)
	ct.TotalCost = 0
	ct.ModelCosts = make(map[string]float64)
	ct.InputTokens = 0
	ct.OutputTokens = 0
}

// String returns a human-readable summary of cost tracking.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return fmt.Sprintf(
		"CostTracker{RunID: %s, Calls: %d, TotalCost: $%.4f %s, InputTokens: %d, OutputTokens: %d}",
		ct.RunID,
		len(ct.Calls),
		ct.TotalCost,
		ct.Currency,
		ct.InputTokens,
		ct.OutputTokens,
	)
}
