package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/vat"
)

// VATRequest hechos de la operación más las líneas a calcular.
type VATRequest struct {
	compliance.Facts
	Lines []vat.Line `json:"lines"`
}

// NextNumberRequest cuerpo de POST /api/numbering/next. La empresa sale del token.
type NextNumberRequest struct {
	CountryCode   string          `json:"countryCode"`
	Series        string          `json:"series"`
	DocumentType  string          `json:"documentType"`
	IssueDate     *time.Time      `json:"issueDate,omitempty"`
	TotalHT       decimal.Decimal `json:"totalHT"`
	TotalVAT      decimal.Decimal `json:"totalVAT"`
	TotalTTC      decimal.Decimal `json:"totalTTC"`
	SupplierTaxID string          `json:"supplierTaxId"`
	CustomerTaxID string          `json:"customerTaxId"`
}

// ReleaseNumberRequest cuerpo de POST /api/numbering/release.
type ReleaseNumberRequest struct {
	CountryCode  string `json:"countryCode"`
	Series       string `json:"series"`
	DocumentType string `json:"documentType"`
	Sequence     int64  `json:"sequence"`
}

// ChainQuery parámetros de consulta de la cadena y de huecos.
type ChainQuery struct {
	CountryCode  string `query:"country"`
	Series       string `query:"series"`
	DocumentType string `query:"documentType"`
}

// TransmissionRequest cuerpo de POST /api/transmissions. XML y PDF viajan en base64.
type TransmissionRequest struct {
	InvoiceID     string            `json:"invoiceId"`
	InvoiceNumber string            `json:"invoiceNumber"`
	DocumentType  string            `json:"documentType"`
	Platform      string            `json:"platform"`
	Format        string            `json:"format,omitempty"`
	XML           []byte            `json:"xml,omitempty"`
	PDF           []byte            `json:"pdf,omitempty"`
	Sender        entity.Party      `json:"sender"`
	Recipient     entity.Party      `json:"recipient"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ToPayload arma la carga con la empresa del token.
func (r TransmissionRequest) ToPayload(companyID string) *entity.TransmissionPayload {
	return &entity.TransmissionPayload{
		CompanyID:     companyID,
		InvoiceID:     r.InvoiceID,
		InvoiceNumber: r.InvoiceNumber,
		DocumentType:  r.DocumentType,
		Platform:      r.Platform,
		Format:        r.Format,
		XML:           r.XML,
		PDF:           r.PDF,
		Sender:        r.Sender,
		Recipient:     r.Recipient,
		Metadata:      r.Metadata,
	}
}

// SettingsRequest cuerpo de PUT /api/compliance/settings/:platform. Un secreto vacío
// conserva el almacenado.
type SettingsRequest struct {
	APIURL       string `json:"apiUrl"`
	TokenURL     string `json:"tokenUrl"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIKey       string `json:"apiKey"`
}

// CountriesResponse códigos configurados.
type CountriesResponse struct {
	Countries []string `json:"countries"`
}
