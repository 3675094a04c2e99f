package entity

import "time"

// TransmissionStatus estado de una transmisión.
type TransmissionStatus string

const (
	StatusDelivered TransmissionStatus = "delivered"
	StatusAccepted  TransmissionStatus = "accepted"
	StatusValidated TransmissionStatus = "validated"
	StatusSubmitted TransmissionStatus = "submitted"
	StatusPending   TransmissionStatus = "pending"
	StatusRejected  TransmissionStatus = "rejected"
	StatusFailed    TransmissionStatus = "failed"
)

// Códigos de error estables de la capa de transmisión.
const (
	ErrorCodeCircuitOpen     = "CIRCUIT_BREAKER_OPEN"
	ErrorCodeRetryExhausted  = "RETRY_EXHAUSTED"
	ErrorCodeNotConfigured   = "NOT_CONFIGURED"
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeTransmission    = "TRANSMISSION_ERROR"
	ErrorCodeUnsupported     = "UNSUPPORTED_OPERATION"
	ErrorCodePlatformRejects = "PLATFORM_REJECTED"
)

// Party datos de emisor/receptor necesarios para enrutar el documento.
type Party struct {
	Name        string `json:"name"`
	TaxID       string `json:"taxId"`
	CountryCode string `json:"countryCode"`
	Email       string `json:"email,omitempty"`
	RoutingID   string `json:"routingId,omitempty"` // participante Peppol, código destinatario SDI...
}

// TransmissionPayload objeto valor transitorio; XML y PDF se pasan sin modificar.
type TransmissionPayload struct {
	CompanyID     string            `json:"companyId"`
	InvoiceID     string            `json:"invoiceId"`
	InvoiceNumber string            `json:"invoiceNumber"`
	DocumentType  string            `json:"documentType"`
	Platform      string            `json:"platform"`
	Format        string            `json:"format,omitempty"`
	XML           []byte            `json:"xml,omitempty"`
	PDF           []byte            `json:"pdf,omitempty"`
	Sender        Party             `json:"sender"`
	Recipient     Party             `json:"recipient"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TransmissionResult resultado uniforme para todas las plataformas.
type TransmissionResult struct {
	Success     bool               `json:"success"`
	Status      TransmissionStatus `json:"status"`
	Platform    string             `json:"platform"`
	ExternalID  string             `json:"externalId,omitempty"`
	ErrorCode   string             `json:"errorCode,omitempty"`
	Message     string             `json:"message,omitempty"`
	Attempts    int                `json:"attempts"`
	SubmittedAt time.Time          `json:"submittedAt"`
}

// TransmissionRef referencia a una transmisión ya enviada.
type TransmissionRef struct {
	CompanyID  string `json:"companyId"`
	Platform   string `json:"platform"`
	ExternalID string `json:"externalId"`
}

// StatusResult respuesta de una consulta de estado.
type StatusResult struct {
	Success    bool               `json:"success"`
	Status     TransmissionStatus `json:"status"`
	ExternalID string             `json:"externalId"`
	ErrorCode  string             `json:"errorCode,omitempty"`
	Message    string             `json:"message,omitempty"`
	Attempts   int                `json:"attempts"`
}

// CancelResult respuesta de una anulación (se intenta una sola vez).
type CancelResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"externalId"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Message    string `json:"message,omitempty"`
}
