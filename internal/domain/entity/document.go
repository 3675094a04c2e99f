package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentStatus estado del documento a rectificar.
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentIssued    DocumentStatus = "issued"
	DocumentSent      DocumentStatus = "sent"
	DocumentPaid      DocumentStatus = "paid"
	DocumentCancelled DocumentStatus = "cancelled"
	DocumentCredited  DocumentStatus = "credited"
)

// IsTerminal pagado, anulado o ya abonado.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentPaid || s == DocumentCancelled || s == DocumentCredited
}

// DocumentLine línea facturada.
type DocumentLine struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Rate        decimal.Decimal `json:"rate"`
}

// DocumentState estado actual del documento (lo gestiona el CRUD externo).
type DocumentState struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Status        DocumentStatus  `json:"status"`
	PlatformID    string          `json:"platformId,omitempty"`
	TransmittedAt *time.Time      `json:"transmittedAt,omitempty"`
	ReverseCharge bool            `json:"reverseCharge"`
	TotalHT       decimal.Decimal `json:"totalHT"`
	TotalVAT      decimal.Decimal `json:"totalVAT"`
	TotalTTC      decimal.Decimal `json:"totalTTC"`
	Lines         []DocumentLine  `json:"lines"`
}

// WasTransmitted enviado a una plataforma o con identificador asignado por ella.
func (d DocumentState) WasTransmitted() bool {
	return d.PlatformID != "" || d.TransmittedAt != nil
}
