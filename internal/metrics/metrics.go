// Package metrics holds the prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing,
// which keeps unit tests free of global registry state.
type Metrics struct {
	Submissions        *prometheus.CounterVec
	StepTransitions    *prometheus.CounterVec
	StorageErrors      *prometheus.CounterVec
	BoxOfficeLocks     prometheus.Counter
	CatalogSearch      prometheus.Histogram
	SessionExpirations *prometheus.CounterVec
}

// NewMetrics registers the collectors on the default registry.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Screening requests submitted, by record kind and outcome",
		}, []string{"kind", "outcome"}),
		StepTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Wizard step transitions",
		}, []string{"from", "to"}),
		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Session storage operations that failed and were treated as no-ops",
		}, []string{"op"}),
		BoxOfficeLocks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "box_office_locks_total",
			Help:      "Box-office returns locked",
		}),
		CatalogSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_search_seconds",
			Help:      "Catalog search latency",
			Buckets:   prometheus.DefBuckets,
		}),
		SessionExpirations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_expirations_total",
			Help:      "Drafts cleared by idle timeout or fresh page load",
		}, []string{"reason"}),
	}
}

func (m *Metrics) Submission(kind, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) StorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) BoxOfficeLocked() {
	if m == nil {
		return
	}
	m.BoxOfficeLocks.Inc()
}

func (m *Metrics) ObserveSearch(seconds float64) {
	if m == nil {
		return
	}
	m.CatalogSearch.Observe(seconds)
}

func (m *Metrics) Expired(reason string) {
	if m == nil {
		return
	}
	m.SessionExpirations.WithLabelValues(reason).Inc()
}
