// Package metrics records surgery engine activity as Prometheus series.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every series unless overridden.
const DefaultNamespace = "theatre"

// PrometheusRecorder implements surgery.Metrics with counters and a gauge of
// operations in progress, registered on its own registry.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	started    *prometheus.CounterVec
	ended      *prometheus.CounterVec
	inProgress prometheus.Gauge
	steps      *prometheus.CounterVec
}

// NewPrometheusRecorder creates and registers the engine series.
func NewPrometheusRecorder(namespace string) (*PrometheusRecorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "surgery",
			Name:      "operations_started_total",
			Help:      "Operations started, by operation id.",
		}, []string{"operation"}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "surgery",
			Name:      "operations_ended_total",
			Help:      "Operations ended, by operation id and result (completed or stopped).",
		}, []string{"operation", "result"}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "surgery",
			Name:      "operations_in_progress",
			Help:      "Operations currently underway.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "surgery",
			Name:      "step_attempts_total",
			Help:      "Resolved step attempts, by behavior and outcome.",
		}, []string{"behavior", "outcome"}),
	}
	for _, c := range []prometheus.Collector{r.started, r.ended, r.inProgress, r.steps} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register surgery metrics: %w", err)
		}
	}
	return r, nil
}

// OperationStarted counts a started operation.
func (r *PrometheusRecorder) OperationStarted(operation string) {
	r.started.WithLabelValues(operation).Inc()
	r.inProgress.Inc()
}

// OperationEnded counts a completed or stopped operation.
func (r *PrometheusRecorder) OperationEnded(operation string, completed bool) {
	result := "stopped"
	if completed {
		result = "completed"
	}
	r.ended.WithLabelValues(operation, result).Inc()
	r.inProgress.Dec()
}

// StepResolved counts a resolved step attempt.
func (r *PrometheusRecorder) StepResolved(behavior surgery.BehaviorKind, outcome surgery.StepOutcome) {
	r.steps.WithLabelValues(string(behavior), string(outcome)).Inc()
}

// Registry exposes the registry for scraping or testing.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteText dumps the current series in the Prometheus text format.
func (r *PrometheusRecorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var b strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	_, err = io.WriteString(w, b.String())
	return err
}

var _ surgery.Metrics = (*PrometheusRecorder)(nil)
