// Package metrics exposes Prometheus collectors for the verification pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "veracity"

// Metrics groups the pipeline collectors
type Metrics struct {
	verifications    *prometheus.CounterVec
	issues           *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	branchDuration   *prometheus.HistogramVec
	confidence       prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// Labels: domain, risk
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Completed verifications by domain and risk level",
		}, []string{"domain", "risk"}),

		// Labels: type, severity
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Issues reported by type and severity",
		}, []string{"type", "severity"}),

		// Labels: provider
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Source provider queries that failed or timed out",
		}, []string{"provider"}),

		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_query_seconds",
			Help:      "Source provider query latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"provider"}),

		// Labels: branch (fact_checker, compliance, logic_analyzer)
		branchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "branch_duration_seconds",
			Help:      "Analyzer branch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"branch"}),

		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overall_confidence",
			Help:      "Distribution of overall document confidence",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.verifications, m.issues, m.providerFailures,
			m.providerLatency, m.branchDuration, m.confidence)
	}
	return m
}

// ObserveVerification records a finished verification
func (m *Metrics) ObserveVerification(domain, risk string, confidence float64) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(domain, risk).Inc()
	m.confidence.Observe(confidence)
}

// ObserveIssue counts one reported issue
func (m *Metrics) ObserveIssue(issueType, severity string) {
	if m == nil {
		return
	}
	m.issues.WithLabelValues(issueType, severity).Inc()
}

// ObserveProvider records a provider query and whether it failed
func (m *Metrics) ObserveProvider(provider string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
	if failed {
		m.providerFailures.WithLabelValues(provider).Inc()
	}
}

// ObserveBranch records how long an analyzer branch took
func (m *Metrics) ObserveBranch(branch string, d time.Duration) {
	if m == nil {
		return
	}
	m.branchDuration.WithLabelValues(branch).Observe(d.Seconds())
}
