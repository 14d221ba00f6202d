// Package metrics defines the Recorder interface the runtime core
// increments, and a Prometheus-backed implementation a deployment can
// wire in. The core never imports the default registry directly — it
// only calls through Recorder, so a caller that never configures metrics
// pays nothing but a handful of no-op calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the turn loop and sandbox report
// through. The event bus takes no Recorder, so no runtime component
// calls BusEventDropped. Implementations must be safe for concurrent use.
type Recorder interface {
	// RunStarted records a new agent run beginning.
	RunStarted(agentID, model string)

	// RunCompleted records a run's terminal status and wall time.
	RunCompleted(agentID, model, status string, durationSeconds float64, promptTokens, completionTokens int)

	// ToolExecution records one tool invocation's outcome and latency.
	ToolExecution(toolName, status string, durationSeconds float64)

	// SandboxDenial records a sandbox policy rejection by error code.
	SandboxDenial(code string)

	// BusEventDropped records an event bus handler panic or dropped
	// emission, keyed by event name.
	BusEventDropped(event string)
}

// NoopRecorder discards every call. It is the default Recorder when none
// is configured.
type NoopRecorder struct{}

func (NoopRecorder) RunStarted(string, string)                                {}
func (NoopRecorder) RunCompleted(string, string, string, float64, int, int)   {}
func (NoopRecorder) ToolExecution(string, string, float64)                    {}
func (NoopRecorder) SandboxDenial(string)                                     {}
func (NoopRecorder) BusEventDropped(string)                                   {}

// PrometheusRecorder is a Recorder backed by prometheus/client_golang,
// registered against prometheus.DefaultRegisterer via promauto.
type PrometheusRecorder struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	tokensUsed       *prometheus.CounterVec
	toolExecutions   *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	sandboxDenials   *prometheus.CounterVec
	busEventsDropped *prometheus.CounterVec
}

// NewPrometheusRecorder constructs and registers the runtime's metric
// families. Call once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_runs_total",
				Help: "Total number of agent runs by agent, model, and status",
			},
			[]string{"agent_id", "model", "status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent_id", "model"},
		),
		tokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tokens_total",
				Help: "Total tokens consumed by agent, model, and token type",
			},
			[]string{"agent_id", "model", "type"},
		),
		toolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		toolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		sandboxDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_sandbox_denials_total",
				Help: "Total sandbox policy denials by error code",
			},
			[]string{"code"},
		),
		busEventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_bus_events_dropped_total",
				Help: "Total event bus deliveries that failed or were recovered from a handler panic",
			},
			[]string{"event"},
		),
	}
}

func (r *PrometheusRecorder) RunStarted(agentID, model string) {
	r.runsTotal.WithLabelValues(agentID, model, "started").Inc()
}

func (r *PrometheusRecorder) RunCompleted(agentID, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	r.runsTotal.WithLabelValues(agentID, model, status).Inc()
	r.runDuration.WithLabelValues(agentID, model).Observe(durationSeconds)
	if promptTokens > 0 {
		r.tokensUsed.WithLabelValues(agentID, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		r.tokensUsed.WithLabelValues(agentID, model, "completion").Add(float64(completionTokens))
	}
}

func (r *PrometheusRecorder) ToolExecution(toolName, status string, durationSeconds float64) {
	r.toolExecutions.WithLabelValues(toolName, status).Inc()
	r.toolDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

func (r *PrometheusRecorder) SandboxDenial(code string) {
	r.sandboxDenials.WithLabelValues(code).Inc()
}

func (r *PrometheusRecorder) BusEventDropped(event string) {
	r.busEventsDropped.WithLabelValues(event).Inc()
}
