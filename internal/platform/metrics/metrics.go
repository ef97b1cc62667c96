// Package metrics exposes Prometheus counters for the compliance workflows.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gdprkit"

type Metrics struct {
	registry *prometheus.Registry

	httpDuration       *prometheus.HistogramVec
	consentDecisions   *prometheus.CounterVec
	requests           *prometheus.CounterVec
	erasures           *prometheus.CounterVec
	retentionProcessed *prometheus.CounterVec
	auditDropped       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		consentDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consent_decisions_total",
			Help:      "Consent decisions per category.",
		}, []string{"category", "granted"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_requests_total",
			Help:      "Data subject request transitions.",
		}, []string{"type", "status"}),
		erasures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erasures_total",
			Help:      "Erased accounts by trigger.",
		}, []string{"reason"}),
		retentionProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_processed_total",
			Help:      "Records processed by retention policy.",
		}, []string{"policy"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_dropped_total",
			Help:      "Audit entries dropped because the queue was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration,
		m.consentDecisions,
		m.requests,
		m.erasures,
		m.retentionProcessed,
		m.auditDropped,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ConsentDecision(category string, granted bool) {
	if m == nil {
		return
	}
	m.consentDecisions.WithLabelValues(category, strconv.FormatBool(granted)).Inc()
}

func (m *Metrics) Request(reqType, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(reqType, status).Inc()
}

func (m *Metrics) Erasure(reason string) {
	if m == nil {
		return
	}
	m.erasures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RetentionProcessed(policy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionProcessed.WithLabelValues(policy).Add(float64(n))
}

func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
