// Package metrics exposes Prometheus instrumentation for plan translation.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quantadist"

// Metrics holds the translation collectors.
type Metrics struct {
	nodesTranslated     *prometheus.CounterVec
	translationErrors   *prometheus.CounterVec
	translationDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		nodesTranslated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "nodes_translated_total",
				Help:      "Count of plan nodes turned into operators, by node kind.",
			}, []string{"node"}),
		translationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "translation_errors_total",
				Help:      "Count of failed plan translations, by error code.",
			}, []string{"code"}),
		translationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "translation_duration_seconds",
				Help:      "Bucketed histogram of whole-plan translation duration.",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
			}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.nodesTranslated, m.translationErrors, m.translationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NodeTranslated counts one operator built from a node of the given kind.
func (m *Metrics) NodeTranslated(node string) {
	if m == nil {
		return
	}
	m.nodesTranslated.WithLabelValues(node).Inc()
}

// TranslationFailed counts one failed translation.
func (m *Metrics) TranslationFailed(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.translationErrors.WithLabelValues(code).Inc()
}

// ObserveTranslation records the duration of one translation.
func (m *Metrics) ObserveTranslation(d time.Duration) {
	if m == nil {
		return
	}
	m.translationDuration.Observe(d.Seconds())
}
