// metrics.go -- Prometheus metrics for the callback coordinator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Callback outcome label values.
const (
	OutcomeCompleted       = "completed"
	OutcomeInvalidRequest  = "invalid_request"
	OutcomeNotArmed        = "not_armed"
	OutcomeUpstreamFailure = "upstream_failure"
)

// Metrics holds all Prometheus metrics for callbackd.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IdentifiersStored prometheus.Counter

	// Callback results by outcome (see Outcome* constants)
	CallbackOutcomes *prometheus.CounterVec

	// Identity service CompleteResourceTokenAuth latency, success or not
	IdentityLatency prometheus.Histogram
}

// New creates and registers all metrics on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IdentifiersStored: f.NewCounter(prometheus.CounterOpts{
			Name: "callbackd_identifiers_stored_total",
			Help: "Total number of user token identifiers stored by the flow driver",
		}),
		CallbackOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callbackd_callbacks_total",
			Help: "Total OAuth2 callbacks handled, by outcome",
		}, []string{"outcome"}),
		IdentityLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "callbackd_identity_complete_duration_seconds",
			Help:    "Duration of identity service CompleteResourceTokenAuth calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// SampleCount returns how many observations h has recorded.
func SampleCount(h prometheus.Histogram) uint64 {
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

// IncrementStored records one StoreIdentifier call.
func (m *Metrics) IncrementStored() {
	if m != nil {
		m.IdentifiersStored.Inc()
	}
}

// IncrementOutcome records a callback outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.CallbackOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveIdentityLatency records how long the identity service call took.
func (m *Metrics) ObserveIdentityLatency(d time.Duration) {
	if m != nil {
		m.IdentityLatency.Observe(d.Seconds())
	}
}
