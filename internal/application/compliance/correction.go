package compliance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/correction"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// CreditNoteDocumentType tipo de documento con el que se numeran los abonos.
const CreditNoteDocumentType = "credit_note"

// NumberIssuer emite números del libro (ledger.Service).
type NumberIssuer interface {
	Next(ctx context.Context, in ledger.NextInput) (*ledger.Issued, error)
}

// CorrectionRequest rectificación de un documento de la empresa.
type CorrectionRequest struct {
	CompanyID     string                `json:"-"`
	CountryCode   string                `json:"countryCode"`
	Series        string                `json:"series"`
	SupplierTaxID string                `json:"supplierTaxId"`
	CustomerTaxID string                `json:"customerTaxId"`
	Document      entity.DocumentState  `json:"document"`
	Kind          entity.CreditNoteKind `json:"kind,omitempty"`
	Amount        decimal.Decimal       `json:"amount"`
	Lines         []entity.DocumentLine `json:"lines,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

// CorrectionResult decisión y, si el abono quedó completado, su número.
type CorrectionResult struct {
	ID        string               `json:"id"`
	Decision  *correction.Decision `json:"decision"`
	Numbering *ledger.Issued       `json:"numbering,omitempty"`
}

// CorrectionService aplica la política del país y numera el abono resultante.
type CorrectionService struct {
	countries ports.CountryStore
	issuer    NumberIssuer
	log       zerolog.Logger
}

// NewCorrectionService issuer nil deja los abonos sin numerar.
func NewCorrectionService(countries ports.CountryStore, issuer NumberIssuer, log zerolog.Logger) *CorrectionService {
	return &CorrectionService{countries: countries, issuer: issuer, log: log}
}

// Correct decide entre modificación y abono. Un abono pendiente de aprobación no se numera
// hasta que la plataforma lo autorice.
func (s *CorrectionService) Correct(ctx context.Context, req CorrectionRequest) (*CorrectionResult, error) {
	if req.Document.ID == "" {
		return nil, fmt.Errorf("%w: documento sin identificador", domain.ErrInvalidInput)
	}
	cfg, found := s.countries.Resolve(normalizeCountry(req.CountryCode))
	if !found {
		s.log.Warn().Str("country", req.CountryCode).Msg("país sin política de rectificación, se usa DEFAULT")
	}

	dec, err := correction.Decide(correction.Request{
		Document: req.Document,
		Policy:   cfg.Correction,
		Kind:     req.Kind,
		Amount:   req.Amount,
		Lines:    req.Lines,
		Reason:   req.Reason,
	})
	if err != nil {
		return nil, err
	}

	out := &CorrectionResult{ID: uuid.NewString(), Decision: dec}
	if dec.Action != correction.ActionCreditNote || dec.Status != correction.StatusCompleted || s.issuer == nil {
		s.log.Info().Str("document", req.Document.ID).Str("action", string(dec.Action)).Str("status", string(dec.Status)).Msg("rectificación decidida")
		return out, nil
	}

	note := dec.CreditNote
	issued, err := s.issuer.Next(ctx, ledger.NextInput{
		CompanyID:     req.CompanyID,
		CountryCode:   cfg.Code,
		Series:        req.Series,
		DocumentType:  CreditNoteDocumentType,
		TotalHT:       note.TotalHT,
		TotalVAT:      note.TotalVAT,
		TotalTTC:      note.TotalTTC,
		SupplierTaxID: req.SupplierTaxID,
		CustomerTaxID: req.CustomerTaxID,
	})
	if err != nil {
		return nil, fmt.Errorf("numerar abono: %w", err)
	}
	out.Numbering = issued
	s.log.Info().Str("document", req.Document.ID).Str("credit_note", issued.Number).Msg("abono emitido")
	return out, nil
}
