// Package metrics exports console operations to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

const namespace = "assetconsole"

// Recorder implements core.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	submits     *prometheus.CounterVec
	validations *prometheus.CounterVec
	allocations *prometheus.CounterVec
	workspaces  prometheus.Gauge
	imports     *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

var _ core.Recorder = (*Recorder)(nil)

// New creates a recorder. Go runtime and process collectors are included
// when withRuntime is set.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submits_total",
			Help:      "Batch submissions to the asset backend by table, action and outcome.",
		}, []string{"table", "action", "outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Submissions blocked by local validation.",
		}, []string{"table", "action"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_allocations_total",
			Help:      "Identifier allocations by category and outcome.",
		}, []string{"category", "outcome"}),
		workspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces_active",
			Help:      "Console workspaces currently held in memory.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Spreadsheet imports into registration sessions.",
		}, []string{"table", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Console HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	r.registry.MustRegister(r.submits, r.validations, r.allocations, r.workspaces, r.imports, r.requests)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

func (r *Recorder) Submit(table, action, outcome string) {
	r.submits.WithLabelValues(table, action, outcome).Inc()
}

func (r *Recorder) ValidationFailed(table, action string) {
	r.validations.WithLabelValues(table, action).Inc()
}

func (r *Recorder) Allocation(category, outcome string) {
	r.allocations.WithLabelValues(category, outcome).Inc()
}

func (r *Recorder) WorkspacesActive(n int) {
	r.workspaces.Set(float64(n))
}

// Import counts one spreadsheet import.
func (r *Recorder) Import(table, outcome string) {
	r.imports.WithLabelValues(table, outcome).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(route, method string, status int, seconds float64) {
	r.requests.WithLabelValues(route, method, statusClass(status)).Observe(seconds)
}

// Registry exposes the registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
