package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the execution metrics of one process.
type Metrics struct {
	Executions      *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	Transformations prometheus.Counter
	DispatchErrors  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a fresh registry
// that also carries the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnb_executions_total",
				Help: "Cell executions by final status.",
			},
			[]string{"status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mnb_execution_duration_seconds",
				Help:    "Wall time of cell executions, including the handler round trip.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"response_kind"},
		),
		Transformations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnb_transformations_total",
			Help: "Transformation cells inserted into notebooks.",
		}),
		DispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnb_dispatch_errors_total",
			Help: "Executions whose handler call failed or timed out.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Executions,
		m.Duration,
		m.Transformations,
		m.DispatchErrors,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record every execution.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExecutionEnd: func(_ context.Context, ev *domain.ExecutionEvent) {
			m.Executions.WithLabelValues(string(ev.Status)).Inc()

			kind := ev.ResponseKind
			if kind == "" {
				kind = "none"
			}
			m.Duration.WithLabelValues(kind).Observe(ev.Duration.Seconds())

			if ev.DispatchErr != nil {
				m.DispatchErrors.Inc()
			}
		},
		OnCellInserted: func(context.Context, *domain.ExecutionEvent) {
			m.Transformations.Inc()
		},
	}
}
