package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	passRuns        *prometheus.CounterVec // total reconciliation passes
	passDuration    prometheus.Histogram   // time per pass
	recordSteps     *prometheus.CounterVec // per-record step outcomes
	providerReqs    *prometheus.CounterVec // dns provider requests
	ipResolutions   *prometheus.CounterVec // public ip source attempts
	journalRequests *prometheus.CounterVec // journal db requests
}

// Public interface for metrics operations
func (m *Metrics) IncPassRun(success bool) {
	m.passRuns.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetPassDuration(duration time.Duration) {
	m.passDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncRecordStep(step, outcome, zone string) {
	if !isValidStep(step) || zone == "" {
		return
	}
	m.recordSteps.WithLabelValues(step, outcome, zone).Inc()
}

func (m *Metrics) IncProviderRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	m.providerReqs.WithLabelValues(operation, zone, boolToResult(success)).Inc()
}

func (m *Metrics) IncIPResolution(source string, success bool) {
	m.ipResolutions.WithLabelValues(source, boolToResult(success)).Inc()
}

func (m *Metrics) IncJournalRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.journalRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "list", "add", "remove", "read", "write":
		return true
	}
	return false
}

func isValidStep(step string) bool {
	switch step {
	case "remove", "add":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "dyndns_sync"

	m := &Metrics{
		registry: registry,

		passRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_runs_total",
			Help:      "Total number of reconciliation passes",
		}, []string{"status"}),

		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		recordSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_steps_total",
			Help:      "Per-record removal and add step outcomes",
		}, []string{"step", "outcome", "zone"}),

		providerReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		ipResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_resolution_attempts_total",
			Help:      "Public IP source attempts",
		}, []string{"source", "status"}),

		journalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_requests_total",
			Help:      "Total journal db requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.passRuns,
			m.passDuration,
			m.recordSteps,
			m.providerReqs,
			m.ipResolutions,
			m.journalRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
