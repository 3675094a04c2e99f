// Package metrics implementación Prometheus del puerto de observabilidad.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

// Prometheus contadores del dispatcher, breakers, numeración y validación de NIF-IVA.
type Prometheus struct {
	transmissions *prometheus.CounterVec
	attempts      *prometheus.HistogramVec
	breakers      *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
	numbers       *prometheus.CounterVec
	taxIDChecks   *prometheus.CounterVec
}

// New registra los colectores en reg. Con reg nil se usa un registro propio.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Prometheus{
		transmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "transmission_outcomes_total",
			Help:      "Resultados de transmisión por plataforma, operación, estado y código de error.",
		}, []string{"platform", "operation", "status", "error_code"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "compliance",
			Name:      "transmission_attempts",
			Help:      "Intentos consumidos por operación.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}, []string{"platform", "operation"}),
		breakers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "breaker_transitions_total",
			Help:      "Cambios de estado de los circuit breakers.",
		}, []string{"platform", "from", "to"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "compliance",
			Name:      "breaker_open",
			Help:      "1 si el circuito de la plataforma no está cerrado.",
		}, []string{"platform"}),
		numbers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "numbers_issued_total",
			Help:      "Números emitidos por país y tipo de documento.",
		}, []string{"country", "document_type"}),
		taxIDChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "taxid_validations_total",
			Help:      "Validaciones de NIF-IVA por resultado (valid, invalid, cache_hit, fail_open).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.transmissions, m.attempts, m.breakers, m.breakerState, m.numbers, m.taxIDChecks)
	return m
}

func (m *Prometheus) TransmissionOutcome(platform, operation, status, errorCode string, attempts int) {
	m.transmissions.WithLabelValues(platform, operation, status, errorCode).Inc()
	m.attempts.WithLabelValues(platform, operation).Observe(float64(attempts))
}

func (m *Prometheus) BreakerTransition(platform, from, to string) {
	m.breakers.WithLabelValues(platform, from, to).Inc()
	open := 0.0
	if to != "CLOSED" {
		open = 1
	}
	m.breakerState.WithLabelValues(platform).Set(open)
}

func (m *Prometheus) NumberIssued(country, documentType string) {
	m.numbers.WithLabelValues(country, documentType).Inc()
}

func (m *Prometheus) TaxIDValidation(outcome string) {
	m.taxIDChecks.WithLabelValues(outcome).Inc()
}
