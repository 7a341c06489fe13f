package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the auth engine's Prometheus series. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Logins         *prometheus.CounterVec
	Validations    *prometheus.CounterVec
	CleanupDeleted prometheus.Counter
	CleanupRuns    *prometheus.CounterVec
}

// NewMetrics creates the series and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenauth_logins_total",
				Help: "Login attempts by provider and resulting state",
			},
			[]string{"provider", "outcome"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenauth_token_validations_total",
				Help: "Token validations by result",
			},
			[]string{"result"},
		),
		CleanupDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tokenauth_cleanup_deleted_total",
				Help: "Expired token rows removed by the cleanup sweep",
			},
		),
		CleanupRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenauth_cleanup_runs_total",
				Help: "Cleanup sweeps by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.Logins,
		m.Validations,
		m.CleanupDeleted,
		m.CleanupRuns,
	)
	return m
}

func (m *Metrics) login(provider, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) validation(result string) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(result).Inc()
}

func (m *Metrics) cleanup(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.CleanupRuns.WithLabelValues("ok").Inc()
	m.CleanupDeleted.Add(float64(deleted))
}
