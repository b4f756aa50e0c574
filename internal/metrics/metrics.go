// Package metrics exposes storage, patch and install metrics through a
// dedicated Prometheus registry.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ storage.Metrics = (*Metrics)(nil)

// Metrics holds the strata collectors.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
	samples    *prometheus.GaugeVec
	capacity   *prometheus.GaugeVec
	patches    *prometheus.CounterVec
	steps      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_storage_operations_total",
			Help: "Storage operations by name and outcome",
		}, []string{"op", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_storage_events_total",
			Help: "Lifecycle events emitted by the storage service",
		}, []string{"type"}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strata_facility_samples",
			Help: "Samples stored below a facility",
		}, []string{"facility"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strata_facility_capacity",
			Help: "Sample slots available below a facility",
		}, []string{"facility"}),
		patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_workflow_patches_total",
			Help: "Workflow patch applications by outcome",
		}, []string{"workflow", "outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strata_install_step_duration_seconds",
			Help:    "Duration of install steps",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "outcome"}),
	}
	m.registry.MustRegister(
		m.operations, m.events, m.samples, m.capacity, m.patches, m.steps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOperation counts a storage service operation.
func (m *Metrics) ObserveOperation(op string, err error) {
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

// SetOccupancy records the occupancy of a facility.
func (m *Metrics) SetOccupancy(facilityID string, samples, capacity int) {
	m.samples.WithLabelValues(facilityID).Set(float64(samples))
	m.capacity.WithLabelValues(facilityID).Set(float64(capacity))
}

// Hooks returns lifecycle hooks counting storage events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnItemChange: func(_ context.Context, e *domain.ItemEvent) {
			m.events.WithLabelValues(string(e.Type)).Inc()
		},
		OnSampleChange: func(_ context.Context, e *domain.SampleEvent) {
			m.events.WithLabelValues(string(e.Type)).Inc()
		},
	}
}

// ObservePatch counts a patch report. Use it with workflow.WithObserver.
func (m *Metrics) ObservePatch(r workflow.Report) {
	var o string
	switch {
	case !r.Applied:
		o = "skipped"
	case r.Changed():
		o = "changed"
	default:
		o = "unchanged"
	}
	m.patches.WithLabelValues(r.WorkflowID, o).Inc()
}

// ObserveStep records an install step. Use it with install.WithObserver.
func (m *Metrics) ObserveStep(res install.StepResult) {
	m.steps.WithLabelValues(res.Name, outcome(res.Err)).Observe(res.Duration.Seconds())
}
