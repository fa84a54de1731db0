// Package metrics defines the Prometheus metrics for the credential service.
// It is the single source of truth for metric names, labels, and help strings.
//
// Each Metrics value owns its registry, so routers built in tests do not
// collide on the default registerer.
package metrics

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credentials"

type Metrics struct {
	registry *prometheus.Registry

	// RegistrationsTotal counts registration attempts by outcome.
	// Label:
	//   - outcome: "created", "conflict", "legacy_overwrite", "invalid", "error"
	RegistrationsTotal *prometheus.CounterVec

	// LoginsTotal counts login attempts by outcome.
	// Label:
	//   - outcome: "success", "failure", "error"
	LoginsTotal *prometheus.CounterVec

	// PasswordHashDuration measures time spent deriving a password hash.
	PasswordHashDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of registration attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of login attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		PasswordHashDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "password_hash_duration_seconds",
				Help:      "Duration of password hash derivation.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RegistrationOutcome(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoginOutcome(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePasswordHash(d time.Duration) {
	m.PasswordHashDuration.Observe(d.Seconds())
}

// Middleware records per-request HTTP metrics into this registry.
// Call it once per Metrics value.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  namespace,
		Registerer: m.registry,
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: m.registry,
	})
}
