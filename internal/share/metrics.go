package share

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the reconciler's Prometheus collectors.
type Metrics struct {
	grantsCreated *prometheus.CounterVec
	grantsRemoved *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use to avoid clashes
// on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		grantsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telimart_share_grants_created_total",
				Help: "DocShare grants created for team members.",
			},
			[]string{"doctype"},
		),
		grantsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telimart_share_grants_removed_total",
				Help: "DocShare grants removed by save or delete reconciliation.",
			},
			[]string{"doctype", "hook"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telimart_share_reconcile_failures_total",
				Help: "Reconciliations aborted by a store error.",
			},
			[]string{"doctype", "hook"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "telimart_share_reconcile_duration_seconds",
				Help:    "Latency of share reconciliation in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"doctype", "hook"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.grantsCreated,
		m.grantsRemoved,
		m.failures,
		m.duration,
	}
}
