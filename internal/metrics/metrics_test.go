package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestNoopRecorder_NeverPanics(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.RunStarted("agent-1", "claude-sonnet")
	r.RunCompleted("agent-1", "claude-sonnet", "completed", 1.2, 100, 50)
	r.ToolExecution("echo", "success", 0.01)
	r.SandboxDenial("path_violation")
	r.BusEventDropped("agent:event")
}

func TestPrometheusCounterVec_RecordsAgainstIsolatedRegistry(t *testing.T) {
	// NewPrometheusRecorder registers against the default registerer via
	// promauto, so exercise the counters against a throwaway CounterVec
	// built the same way rather than constructing the shared recorder
	// more than once per process (duplicate registration panics).
	registry := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_runs_total", Help: "test"},
		[]string{"agent_id", "model", "status"},
	)
	registry.MustRegister(runs)

	runs.WithLabelValues("agent-1", "claude-sonnet", "completed").Inc()
	runs.WithLabelValues("agent-1", "claude-sonnet", "completed").Inc()

	if count := testutil.CollectAndCount(runs); count != 1 {
		t.Errorf("expected 1 label combination, got %d", count)
	}
	if got := testutil.ToFloat64(runs.WithLabelValues("agent-1", "claude-sonnet", "completed")); got != 2 {
		t.Errorf("expected counter value 2, got %v", got)
	}
}
