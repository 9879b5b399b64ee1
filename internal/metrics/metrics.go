// Package metrics exposes Prometheus collectors for the reporting service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "groupspend"

// Metrics groups all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	statReads      *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
	reportErrors   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	sessions       prometheus.Gauge
	events         *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stat_reads_total",
			Help:      "Stat cache reads by report and result (hit or miss).",
		}, []string{"report", "result"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time spent computing a report from the ledger.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
		reportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_errors_total",
			Help:      "Failed report computations.",
		}, []string{"report"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_sessions",
			Help:      "Live dashboard sessions.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_events_total",
			Help:      "Expense-created events by source (local or amqp).",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.statReads,
		m.reportDuration,
		m.reportErrors,
		m.httpRequests,
		m.sessions,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StatHit implements cache.Observer.
func (m *Metrics) StatHit(name string) {
	m.statReads.WithLabelValues(name, "hit").Inc()
}

// StatMiss implements cache.Observer.
func (m *Metrics) StatMiss(name string) {
	m.statReads.WithLabelValues(name, "miss").Inc()
}

// ObserveReport implements report.Observer.
func (m *Metrics) ObserveReport(name string, elapsed time.Duration, err error) {
	m.reportDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		m.reportErrors.WithLabelValues(name).Inc()
	}
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method string, code int) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SetSessions records the number of live dashboard sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// ObserveEvent counts one delivered expense-created event.
func (m *Metrics) ObserveEvent(source string) {
	m.events.WithLabelValues(source).Inc()
}
