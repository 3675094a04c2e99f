// Package hashchain: huella encadenada de documentos numerados.
//
// hash = H(campos(doc) unidos por el delimitador del país), donde la lista ordenada de
// campos incluye previousHash (si la configuración no lo menciona se añade al final).
// La primera entrada de una cadena usa GenesisHash como previousHash.
package hashchain

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// GenesisHash previousHash de la primera entrada.
const GenesisHash = "0"

// Algoritmos soportados.
const (
	AlgSHA256  = "sha256"
	AlgSHA1    = "sha1"
	AlgSHA384  = "sha384"
	AlgSHA512  = "sha512"
	AlgSHA3512 = "sha3-512"
)

// Campos admitidos en la lista de hash del país.
const (
	FieldNumber        = "number"
	FieldSeries        = "series"
	FieldDocumentType  = "documentType"
	FieldIssueDate     = "issueDate"
	FieldEntryDate     = "entryDate"
	FieldTotalHT       = "totalHT"
	FieldTotalVAT      = "totalVAT"
	FieldTotalTTC      = "totalTTC"
	FieldSupplierTaxID = "supplierTaxId"
	FieldCustomerTaxID = "customerTaxId"
	FieldPreviousHash  = "previousHash"
)

// DefaultFields lista usada si el país no define ninguna.
var DefaultFields = []string{FieldNumber, FieldIssueDate, FieldTotalTTC, FieldSupplierTaxID, FieldPreviousHash}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z07:00"
)

func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case AlgSHA256, "":
		return sha256.New(), nil
	case AlgSHA1:
		return sha1.New(), nil
	case AlgSHA384:
		return sha512.New384(), nil
	case AlgSHA512:
		return sha512.New(), nil
	case AlgSHA3512:
		return sha3.New512(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedHash, algorithm)
	}
}

// Digest hash hexadecimal en minúsculas de data.
func Digest(algorithm string, data []byte) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidatePolicy comprueba algoritmo y campos de una política (al cargar la tabla de países).
func ValidatePolicy(p entity.NumberingPolicy) error {
	if _, err := newHasher(p.HashAlgorithm); err != nil {
		return err
	}
	for _, f := range p.HashFields {
		if _, err := fieldValue(&entity.ChainEntry{}, f); err != nil {
			return err
		}
	}
	return nil
}

// Payload cadena a resumir: valores de los campos configurados unidos por el delimitador.
func Payload(e *entity.ChainEntry, p entity.NumberingPolicy) (string, error) {
	fields := p.HashFields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	delim := p.HashDelimiter
	if delim == "" {
		delim = "|"
	}

	parts := make([]string, 0, len(fields)+1)
	hasPrev := false
	for _, f := range fields {
		v, err := fieldValue(e, f)
		if err != nil {
			return "", err
		}
		if f == FieldPreviousHash {
			hasPrev = true
		}
		parts = append(parts, v)
	}
	if !hasPrev {
		parts = append(parts, previous(e))
	}
	return strings.Join(parts, delim), nil
}

// Stamp fija en la entrada el algoritmo, los campos y el delimitador efectivos de la política
// para que la cadena se pueda verificar aunque la tabla de países cambie después.
func Stamp(e *entity.ChainEntry, p entity.NumberingPolicy) {
	e.Algorithm = strings.ToLower(p.HashAlgorithm)
	if e.Algorithm == "" {
		e.Algorithm = AlgSHA256
	}
	fields := p.HashFields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	e.HashFields = append([]string(nil), fields...)
	e.HashDelimiter = p.HashDelimiter
	if e.HashDelimiter == "" {
		e.HashDelimiter = "|"
	}
}

// EntryPolicy política con la que se verifica e: lo guardado en la entrada prevalece y la
// política del país solo cubre entradas antiguas sin esos datos.
func EntryPolicy(e *entity.ChainEntry, p entity.NumberingPolicy) entity.NumberingPolicy {
	if e.Algorithm != "" {
		p.HashAlgorithm = e.Algorithm
	}
	if len(e.HashFields) > 0 {
		p.HashFields = e.HashFields
	}
	if e.HashDelimiter != "" {
		p.HashDelimiter = e.HashDelimiter
	}
	return p
}

// Compute hash de la entrada según la política (usa e.PreviousHash).
func Compute(e *entity.ChainEntry, p entity.NumberingPolicy) (string, error) {
	payload, err := Payload(e, p)
	if err != nil {
		return "", err
	}
	return Digest(p.HashAlgorithm, []byte(payload))
}

func previous(e *entity.ChainEntry) string {
	if e.PreviousHash == "" {
		return GenesisHash
	}
	return e.PreviousHash
}

func fieldValue(e *entity.ChainEntry, field string) (string, error) {
	switch field {
	case FieldNumber:
		return e.Number, nil
	case FieldSeries:
		return e.Key.Series, nil
	case FieldDocumentType:
		return e.Key.DocumentType, nil
	case FieldIssueDate:
		return e.IssueDate.Format(dateLayout), nil
	case FieldEntryDate:
		return e.EntryDate.UTC().Format(timestampLayout), nil
	case FieldTotalHT:
		return formatAmount(e.TotalHT.StringFixed(2)), nil
	case FieldTotalVAT:
		return formatAmount(e.TotalVAT.StringFixed(2)), nil
	case FieldTotalTTC:
		return formatAmount(e.TotalTTC.StringFixed(2)), nil
	case FieldSupplierTaxID:
		return e.SupplierTaxID, nil
	case FieldCustomerTaxID:
		return e.CustomerTaxID, nil
	case FieldPreviousHash:
		return previous(e), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownHashField, field)
	}
}

// formatAmount montos sin separador de miles y con punto decimal (1500.00).
func formatAmount(s string) string {
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// ── validación ───────────────────────────────────────────────────────────────

// BreakKind tipo de rotura detectada.
type BreakKind string

const (
	BreakLink   BreakKind = "link"   // previousHash no coincide con el hash anterior
	BreakTamper BreakKind = "tamper" // recalcular los campos no reproduce el hash almacenado
)

// ValidationResult resultado de validar una cadena.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Checked  int       `json:"checked"`
	BrokenAt int64     `json:"brokenAt,omitempty"`
	Kind     BreakKind `json:"kind,omitempty"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

// Err devuelve ErrChainIntegrity con el detalle si la cadena está rota.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: rotura de tipo %s en la secuencia %d", domain.ErrChainIntegrity, r.Kind, r.BrokenAt)
}

// Validate recorre las entradas en el orden recibido (orden de la cadena) y verifica
// enlace y recálculo de cada una. Algoritmo, campos y delimitador guardados en la entrada
// prevalecen sobre los de la política. Se detiene en la primera rotura. Un error solo
// indica una política inválida, no una rotura.
func Validate(entries []entity.ChainEntry, p entity.NumberingPolicy) (ValidationResult, error) {
	res := ValidationResult{Valid: true}
	prevHash := GenesisHash
	for i := range entries {
		e := &entries[i]
		if previous(e) != prevHash {
			return ValidationResult{Checked: i + 1, BrokenAt: e.Sequence, Kind: BreakLink, Expected: prevHash, Actual: e.PreviousHash}, nil
		}
		recomputed, err := Compute(e, EntryPolicy(e, p))
		if err != nil {
			return ValidationResult{}, err
		}
		if recomputed != e.Hash {
			return ValidationResult{Checked: i + 1, BrokenAt: e.Sequence, Kind: BreakTamper, Expected: recomputed, Actual: e.Hash}, nil
		}
		prevHash = e.Hash
		res.Checked = i + 1
	}
	return res, nil
}

// DetectGaps ordena los consecutivos emitidos y devuelve cada entero ausente entre valores observados.
func DetectGaps(sequences []int64) []int64 {
	if len(sequences) < 2 {
		return nil
	}
	sorted := append([]int64(nil), sequences...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var gaps []int64
	for i := 1; i < len(sorted); i++ {
		for missing := sorted[i-1] + 1; missing < sorted[i]; missing++ {
			gaps = append(gaps, missing)
		}
	}
	return gaps
}
