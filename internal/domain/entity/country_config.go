package entity

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/condition"
)

// DefaultCountryCode clave de la configuración genérica usada cuando un país no está en la tabla.
const DefaultCountryCode = "DEFAULT"

// CountryConfig reglas de cumplimiento de un país. Inmutable tras la carga.
type CountryConfig struct {
	Code          string              `yaml:"-" json:"code"`
	Name          string              `yaml:"name" json:"name"`
	IsEU          bool                `yaml:"isEU" json:"isEU"`
	Currency      string              `yaml:"currency" json:"currency"`
	VAT           VATConfig           `yaml:"vat" json:"vat"`
	Identifiers   IdentifierConfig    `yaml:"identifiers" json:"identifiers"`
	Transmission  TransmissionConfig  `yaml:"transmission" json:"transmission"`
	Numbering     NumberingPolicy     `yaml:"numbering" json:"numbering"`
	Format        FormatConfig        `yaml:"format" json:"format"`
	Signature     SignatureConfig     `yaml:"signature" json:"signature"`
	Correction    CorrectionConfig    `yaml:"correction" json:"correction"`
	LegalMentions LegalMentionsConfig `yaml:"legalMentions" json:"legalMentions"`
}

// VATRate tipo impositivo con código estable ("standard", "reduced", "reverse_charge"...).
type VATRate struct {
	Code     string          `yaml:"code" json:"code"`
	Rate     decimal.Decimal `yaml:"rate" json:"rate"`
	LabelKey string          `yaml:"labelKey,omitempty" json:"labelKey,omitempty"`
}

// Exemption motivo de exención referenciable en la factura.
type Exemption struct {
	Code     string `yaml:"code" json:"code"`
	LabelKey string `yaml:"labelKey" json:"labelKey"`
}

// VATConfig tabla de tipos del país.
type VATConfig struct {
	Rates       []VATRate       `yaml:"rates" json:"rates"`
	DefaultRate decimal.Decimal `yaml:"defaultRate" json:"defaultRate"`
	Exemptions  []Exemption     `yaml:"exemptions" json:"exemptions"`
}

// IdentifierDef identificador exigible a la empresa o al cliente (SIRET, NIT, PEC...).
type IdentifierDef struct {
	Key      string `yaml:"key" json:"key"`
	LabelKey string `yaml:"labelKey" json:"labelKey"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Required bool   `yaml:"required" json:"required"`
	Check    string `yaml:"check,omitempty" json:"check,omitempty"` // algoritmo de control (taxid.Check)
}

// IdentifierConfig identificadores de empresa y cliente más el formato del NIF-IVA.
type IdentifierConfig struct {
	Company          []IdentifierDef `yaml:"company" json:"company"`
	Client           []IdentifierDef `yaml:"client" json:"client"`
	VATNumberPattern string          `yaml:"vatNumberPattern" json:"vatNumberPattern"`
}

// TransmissionConfig nombre de plataforma por tipo de operación y excepciones por país destino.
type TransmissionConfig struct {
	B2B         string            `yaml:"b2b" json:"b2b,omitempty"`
	B2G         string            `yaml:"b2g" json:"b2g,omitempty"`
	B2C         string            `yaml:"b2c" json:"b2c,omitempty"`
	Export      string            `yaml:"export" json:"export,omitempty"`
	CrossBorder map[string]string `yaml:"crossBorder" json:"crossBorder,omitempty"`
}

// FormatConfig sintaxis de factura preferida; B2G la exigida a administraciones del país.
type FormatConfig struct {
	Preferred string   `yaml:"preferred" json:"preferred"`
	Accepted  []string `yaml:"accepted" json:"accepted"`
	B2G       string   `yaml:"b2g,omitempty" json:"b2g,omitempty"`
}

// SignatureConfig requisitos de firma y código QR.
type SignatureConfig struct {
	Required   bool   `yaml:"required" json:"required"`
	QRRequired bool   `yaml:"qrRequired" json:"qrRequired"`
	Algorithm  string `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
}

// CreditNoteKind tipo de factura rectificativa.
type CreditNoteKind string

const (
	CreditFull          CreditNoteKind = "full"
	CreditPartialAmount CreditNoteKind = "partial_amount"
	CreditPartialLines  CreditNoteKind = "partial_lines"
)

// CorrectionConfig política de rectificación del país.
type CorrectionConfig struct {
	AllowModification bool             `yaml:"allowModification" json:"allowModification"`
	RequiresApproval  bool             `yaml:"requiresApproval" json:"requiresApproval"`
	ApprovalEndpoint  string           `yaml:"approvalEndpoint,omitempty" json:"approvalEndpoint,omitempty"`
	CreditNoteTypes   []CreditNoteKind `yaml:"creditNoteTypes" json:"creditNoteTypes"`
}

// Allows indica si el tipo de abono está permitido (lista vacía = todos).
func (c CorrectionConfig) Allows(kind CreditNoteKind) bool {
	if len(c.CreditNoteTypes) == 0 {
		return true
	}
	for _, k := range c.CreditNoteTypes {
		if k == kind {
			return true
		}
	}
	return false
}

// ConditionalMention mención legal que aplica si When se cumple.
type ConditionalMention struct {
	Key  string         `yaml:"key" json:"key"`
	When condition.Spec `yaml:"when" json:"when"`
}

// LegalMentionsConfig menciones obligatorias y condicionales.
type LegalMentionsConfig struct {
	Mandatory   []string             `yaml:"mandatory" json:"mandatory"`
	Conditional []ConditionalMention `yaml:"conditional" json:"conditional"`
}
