package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResetPeriod periodicidad del reinicio del consecutivo.
type ResetPeriod string

const (
	ResetYearly  ResetPeriod = "yearly"
	ResetMonthly ResetPeriod = "monthly"
	ResetNever   ResetPeriod = "never"
)

// GapPolicy tratamiento de huecos en la numeración.
type GapPolicy string

const (
	GapAllowed   GapPolicy = "allowed"
	GapForbidden GapPolicy = "forbidden"
	GapJustified GapPolicy = "justified"
)

// NumberingPolicy reglas de numeración y encadenamiento del país.
type NumberingPolicy struct {
	SeriesRequired bool        `yaml:"seriesRequired" json:"seriesRequired"`
	ResetPeriod    ResetPeriod `yaml:"resetPeriod" json:"resetPeriod"`
	GapPolicy      GapPolicy   `yaml:"gapPolicy" json:"gapPolicy"`
	AllowRelease   bool        `yaml:"allowRelease" json:"allowRelease"`
	HashAlgorithm  string      `yaml:"hashAlgorithm" json:"hashAlgorithm"`
	HashFields     []string    `yaml:"hashFields" json:"hashFields"`
	HashDelimiter  string      `yaml:"hashDelimiter" json:"hashDelimiter"`
}

// SequenceKey clave de la secuencia: empresa, serie y tipo de documento.
type SequenceKey struct {
	CompanyID    string `json:"companyId"`
	Series       string `json:"series"`
	DocumentType string `json:"documentType"`
}

// String clave compuesta para mapas y logs.
func (k SequenceKey) String() string {
	return k.CompanyID + "|" + k.Series + "|" + k.DocumentType
}

// NumberingSequenceState estado persistido por clave. LastSequence solo crece dentro de un
// periodo; se reinicia al cruzar la frontera del periodo o retrocede por una liberación explícita.
type NumberingSequenceState struct {
	Key          SequenceKey `json:"key"`
	LastSequence int64       `json:"lastSequence"`
	LastHash     string      `json:"lastHash"`
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ChainEntry registro encadenado de un documento numerado.
type ChainEntry struct {
	ID            string          `json:"id"`
	Key           SequenceKey     `json:"key"`
	Sequence      int64           `json:"sequence"`
	Period        string          `json:"period"` // "2026", "2026-03" o "" según el reinicio
	Number        string          `json:"number"`
	IssueDate     time.Time       `json:"issueDate"`
	EntryDate     time.Time       `json:"entryDate"`
	TotalHT       decimal.Decimal `json:"totalHT"`
	TotalVAT      decimal.Decimal `json:"totalVAT"`
	TotalTTC      decimal.Decimal `json:"totalTTC"`
	SupplierTaxID string          `json:"supplierTaxId"`
	CustomerTaxID string          `json:"customerTaxId"`
	PreviousHash  string          `json:"previousHash"`
	Hash          string          `json:"hash"`
	Algorithm     string          `json:"algorithm"`
	// Campos y delimitador con los que se calculó Hash; la verificación los reutiliza.
	HashFields    []string `json:"hashFields,omitempty"`
	HashDelimiter string   `json:"hashDelimiter,omitempty"`
}
