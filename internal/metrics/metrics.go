// Package metrics bundles Prometheus collectors for solver runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by the agent loop.
type Metrics struct {
	registry     *prometheus.Registry
	Iterations   prometheus.Counter
	ModelCalls   *prometheus.CounterVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	Submissions  *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// New constructs a registry with all solver collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	iterations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solver_loop_iterations_total",
		Help: "Agent loop iterations started",
	})

	modelCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_model_invocations_total",
		Help: "Model invocations by result",
	}, []string{"result"})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_tool_calls_total",
		Help: "Tool dispatches by tool and result",
	}, []string{"tool", "result"})

	toolDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_tool_duration_seconds",
		Help:    "Tool execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_submissions_total",
		Help: "Answer submissions by outcome",
	}, []string{"outcome"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Completed runs by stop reason",
	}, []string{"reason"})

	runDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "Wall-clock duration of runs",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
	})

	reg.MustRegister(iterations, modelCalls, toolCalls, toolDur, submissions, runs, runDur)

	return &Metrics{
		registry:     reg,
		Iterations:   iterations,
		ModelCalls:   modelCalls,
		ToolCalls:    toolCalls,
		ToolDuration: toolDur,
		Submissions:  submissions,
		Runs:         runs,
		RunDuration:  runDur,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordIteration counts one loop iteration.
func (m *Metrics) RecordIteration() {
	if m == nil {
		return
	}
	m.Iterations.Inc()
}

// RecordModelCall counts a model invocation; err marks it failed.
func (m *Metrics) RecordModelCall(err error) {
	if m == nil {
		return
	}
	m.ModelCalls.WithLabelValues(result(err)).Inc()
}

// RecordToolCall counts a dispatch and observes its duration.
func (m *Metrics) RecordToolCall(tool string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	m.ToolCalls.WithLabelValues(tool, result(err)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordSubmission counts a submission attempt by outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(reason string, d time.Duration) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.Runs.WithLabelValues(reason).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
