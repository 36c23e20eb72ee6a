// Package metrics provides Prometheus-compatible instrumentation for the
// scheduler: node visits, tool invocations, visit-cap exhaustion, tool
// errors, and tool-transport reconnects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for a running scheduler,
// all namespaced with "agentgraph_".
//
// Metrics exposed:
//
//  1. active_runs (gauge): runs currently in the running or suspended state.
//     Use: overall load on the scheduler.
//
//  2. node_latency_ms (histogram): node execution duration in milliseconds.
//     Labels: run_id, node_id, outcome (success/failure/suspend).
//
//  3. node_visits_total (counter): cumulative node visits across all runs.
//     Labels: run_id, node_id.
//
//  4. visit_cap_exceeded_total (counter): visit-cap dead ends (§4.3, §7).
//     Labels: run_id, node_id.
//
//  5. tool_invocations_total (counter): tool broker invocations.
//     Labels: server, tool, outcome (ok/tool_error/transport_lost/timeout).
//
//  6. tool_reconnects_total (counter): broker reconnect attempts after
//     transport loss (§4.5).
//     Labels: server, outcome (ok/failed).
//
//  7. llm_tokens_total (counter): tokens consumed by llm-generate/llm-tools
//     nodes. Labels: run_id, node_id, direction (input/output).
type PrometheusMetrics struct {
	activeRuns prometheus.Gauge

	nodeLatency *prometheus.HistogramVec

	nodeVisits       *prometheus.CounterVec
	visitCapExceeded *prometheus.CounterVec
	toolInvocations  *prometheus.CounterVec
	toolReconnects   *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all scheduler metrics with the
// provided registry. Pass nil to use prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.activeRuns = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentgraph",
		Name:      "active_runs",
		Help:      "Runs currently in the running or suspended state",
	})

	pm.nodeLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentgraph",
		Name:      "node_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000, 120000},
	}, []string{"run_id", "node_id", "outcome"})

	pm.nodeVisits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgraph",
		Name:      "node_visits_total",
		Help:      "Cumulative node visits across all runs",
	}, []string{"run_id", "node_id"})

	pm.visitCapExceeded = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgraph",
		Name:      "visit_cap_exceeded_total",
		Help:      "Dead ends reached because a node's visit cap was exceeded",
	}, []string{"run_id", "node_id"})

	pm.toolInvocations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgraph",
		Name:      "tool_invocations_total",
		Help:      "Tool broker invocations",
	}, []string{"server", "tool", "outcome"})

	pm.toolReconnects = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgraph",
		Name:      "tool_reconnects_total",
		Help:      "Tool broker reconnect attempts after transport loss",
	}, []string{"server", "outcome"})

	pm.llmTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgraph",
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed by llm-generate and llm-tools nodes",
	}, []string{"run_id", "node_id", "direction"})

	return pm
}

// RecordNodeLatency records a node's execution duration and outcome.
func (pm *PrometheusMetrics) RecordNodeLatency(runID, nodeID string, latency time.Duration, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.nodeLatency.WithLabelValues(runID, nodeID, outcome).Observe(float64(latency.Milliseconds()))
}

// RecordNodeVisit increments the visit counter for a node.
func (pm *PrometheusMetrics) RecordNodeVisit(runID, nodeID string) {
	if !pm.isEnabled() {
		return
	}
	pm.nodeVisits.WithLabelValues(runID, nodeID).Inc()
}

// RecordVisitCapExceeded increments the visit-cap dead-end counter.
func (pm *PrometheusMetrics) RecordVisitCapExceeded(runID, nodeID string) {
	if !pm.isEnabled() {
		return
	}
	pm.visitCapExceeded.WithLabelValues(runID, nodeID).Inc()
}

// RecordToolInvocation records one tool broker call and its outcome
// ("ok", "tool_error", "transport_lost", or "timeout").
func (pm *PrometheusMetrics) RecordToolInvocation(server, tool, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.toolInvocations.WithLabelValues(server, tool, outcome).Inc()
}

// RecordToolReconnect records a broker reconnect attempt ("ok" or "failed").
func (pm *PrometheusMetrics) RecordToolReconnect(server, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.toolReconnects.WithLabelValues(server, outcome).Inc()
}

// RecordLLMTokens records token usage for an llm-generate/llm-tools call.
func (pm *PrometheusMetrics) RecordLLMTokens(runID, nodeID string, inputTokens, outputTokens int) {
	if !pm.isEnabled() {
		return
	}
	pm.llmTokens.WithLabelValues(runID, nodeID, "input").Add(float64(inputTokens))
	pm.llmTokens.WithLabelValues(runID, nodeID, "output").Add(float64(outputTokens))
}

// SetActiveRuns sets the current number of running/suspended runs.
func (pm *PrometheusMetrics) SetActiveRuns(count int) {
	if !pm.isEnabled() {
		return
	}
	pm.activeRuns.Set(float64(count))
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
