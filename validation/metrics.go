package validation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts validated signatures per aggregate indication and
// observes the validation duration of each signature.
type Metrics struct {
	signatures *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the validation metrics and registers them on reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adesval",
			Subsystem: "validation",
			Name:      "signatures_total",
			Help:      "The total number of validated signatures by indication",
		}, []string{"indication"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adesval",
			Subsystem: "validation",
			Name:      "signature_duration_seconds",
			Help:      "The number of seconds it takes to validate a signature",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.signatures, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(indication string, seconds float64) {
	if m == nil {
		return
	}
	m.signatures.WithLabelValues(indication).Inc()
	m.duration.Observe(seconds)
}
