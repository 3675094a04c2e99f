package ports

// Metrics puerto de observabilidad. La implementación Prometheus vive en infraestructura;
// NopMetrics sirve para tests y la CLI.
type Metrics interface {
	TransmissionOutcome(platform, operation, status, errorCode string, attempts int)
	BreakerTransition(platform, from, to string)
	NumberIssued(country, documentType string)
	TaxIDValidation(outcome string)
}

// NopMetrics descarta todas las observaciones.
type NopMetrics struct{}

func (NopMetrics) TransmissionOutcome(string, string, string, string, int) {}
func (NopMetrics) BreakerTransition(string, string, string)                {}
func (NopMetrics) NumberIssued(string, string)                             {}
func (NopMetrics) TaxIDValidation(string)                                  {}
