package entity

import "github.com/shopspring/decimal"

// VATRules tratamiento de IVA resuelto.
type VATRules struct {
	Rates         []VATRate       `json:"rates"`
	DefaultRate   decimal.Decimal `json:"defaultRate"`
	ReverseCharge bool            `json:"reverseCharge"`
	TextKey       string          `json:"textKey,omitempty"`
	Exemptions    []Exemption     `json:"exemptions,omitempty"`
}

// RateFor busca un tipo por código.
func (r VATRules) RateFor(code string) (decimal.Decimal, bool) {
	for _, rate := range r.Rates {
		if rate.Code == code {
			return rate.Rate, true
		}
	}
	return decimal.Zero, false
}

// ValidationRules campos obligatorios y formatos ("company.siret", "client.pec", "vatNumber").
type ValidationRules struct {
	RequiredFields    []string          `json:"requiredFields"`
	IdentifierFormats map[string]string `json:"identifierFormats"`
	IdentifierChecks  map[string]string `json:"identifierChecks,omitempty"`
}

// FormatRules sintaxis a generar.
type FormatRules struct {
	Format   string   `json:"format"`
	Accepted []string `json:"accepted,omitempty"`
}

// TransmissionMethod canal de transmisión.
type TransmissionMethod string

const (
	MethodPDP               TransmissionMethod = "pdp"
	MethodB2GPortal         TransmissionMethod = "b2g_portal"
	MethodPeppol            TransmissionMethod = "peppol"
	MethodClearance         TransmissionMethod = "clearance"
	MethodRealtimeReporting TransmissionMethod = "realtime_reporting"
	MethodEmail             TransmissionMethod = "email"
)

// TransmissionRule tupla canónica de una plataforma.
type TransmissionRule struct {
	Method       TransmissionMethod `json:"method"`
	Mandatory    bool               `json:"mandatory"`
	Platform     string             `json:"platform"`
	Async        bool               `json:"async"`
	DeadlineDays int                `json:"deadlineDays"`
	LabelKey     string             `json:"labelKey"`
	Icon         string             `json:"icon"`
}

// ApplicableRules salida del resolver; derivada, no se modifica tras resolver.
type ApplicableRules struct {
	VAT              VATRules         `json:"vat"`
	Validation       ValidationRules  `json:"validation"`
	Format           FormatRules      `json:"format"`
	Transmission     TransmissionRule `json:"transmission"`
	Numbering        NumberingPolicy  `json:"numbering"`
	LegalMentionKeys []string         `json:"legalMentionKeys"`
	Signature        SignatureConfig  `json:"signature"`
	Correction       CorrectionConfig `json:"correction"`
}
