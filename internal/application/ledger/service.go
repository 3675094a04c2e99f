// Package ledger libro de numeración: consecutivo atómico por clave y cadena de hashes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/hashchain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/numbering"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
)

// NextInput datos del documento a numerar. Los importes y NIF entran en el hash según
// la lista de campos del país.
type NextInput struct {
	CompanyID     string          `json:"companyId"`
	CountryCode   string          `json:"countryCode"`
	Series        string          `json:"series"`
	DocumentType  string          `json:"documentType"`
	IssueDate     time.Time       `json:"issueDate"`
	TotalHT       decimal.Decimal `json:"totalHT"`
	TotalVAT      decimal.Decimal `json:"totalVAT"`
	TotalTTC      decimal.Decimal `json:"totalTTC"`
	SupplierTaxID string          `json:"supplierTaxId"`
	CustomerTaxID string          `json:"customerTaxId"`
}

// Issued número emitido y su eslabón de la cadena.
type Issued struct {
	EntryID      string    `json:"entryId"`
	Sequence     int64     `json:"sequence"`
	Number       string    `json:"number"`
	Period       string    `json:"period"`
	Hash         string    `json:"hash"`
	PreviousHash string    `json:"previousHash"`
	Algorithm    string    `json:"algorithm"`
	IssuedAt     time.Time `json:"issuedAt"`
	QRPayload    string    `json:"qrPayload,omitempty"`
}

// KeyRef identifica una secuencia y el país cuya política aplica.
type KeyRef struct {
	CompanyID    string `json:"companyId"`
	CountryCode  string `json:"countryCode"`
	Series       string `json:"series"`
	DocumentType string `json:"documentType"`
}

func (k KeyRef) key() entity.SequenceKey {
	return entity.SequenceKey{CompanyID: k.CompanyID, Series: strings.TrimSpace(k.Series), DocumentType: k.DocumentType}
}

// GapReport huecos del periodo en curso.
type GapReport struct {
	Period    string           `json:"period"`
	Policy    entity.GapPolicy `json:"policy"`
	Issued    int              `json:"issued"`
	Gaps      []int64          `json:"gaps"`
	Compliant bool             `json:"compliant"`
}

// Service casos de uso del libro.
type Service struct {
	repo      repository.NumberingRepository
	countries ports.CountryStore
	clock     clock.Clock
	metrics   ports.Metrics
	log       zerolog.Logger
}

// NewService construye el servicio. clk nil usa la hora del sistema.
func NewService(repo repository.NumberingRepository, countries ports.CountryStore, clk clock.Clock, metrics ports.Metrics, log zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Service{repo: repo, countries: countries, clock: clk, metrics: metrics, log: log}
}

func (s *Service) country(code string) *entity.CountryConfig {
	cfg, found := s.countries.Resolve(strings.ToUpper(strings.TrimSpace(code)))
	if !found {
		s.log.Warn().Str("country", code).Msg("país sin política de numeración, se usa DEFAULT")
	}
	return cfg
}

// Next emite el siguiente número. Lectura, cálculo del hash y escritura ocurren en la
// misma sección atómica del repositorio; cualquier fallo aborta sin emitir.
func (s *Service) Next(ctx context.Context, in NextInput) (*Issued, error) {
	if in.CompanyID == "" || in.DocumentType == "" {
		return nil, fmt.Errorf("%w: empresa y tipo de documento son obligatorios", domain.ErrInvalidInput)
	}
	cfg := s.country(in.CountryCode)
	policy := cfg.Numbering
	ref := KeyRef{CompanyID: in.CompanyID, Series: in.Series, DocumentType: in.DocumentType}
	key := ref.key()
	if policy.SeriesRequired && key.Series == "" {
		return nil, domain.ErrSeriesRequired
	}
	if err := hashchain.ValidatePolicy(policy); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}

	var issued *entity.ChainEntry
	err := s.repo.Advance(ctx, key, func(current *entity.NumberingSequenceState) (*entity.NumberingSequenceState, *entity.ChainEntry, error) {
		next := numbering.Next(current, key, policy, now)
		number, err := numbering.FormatNumber(policy, key.Series, next.LastSequence, now)
		if err != nil {
			return nil, nil, err
		}
		entry := &entity.ChainEntry{
			ID:            uuid.NewString(),
			Key:           key,
			Sequence:      next.LastSequence,
			Period:        numbering.Period(policy.ResetPeriod, now),
			Number:        number,
			IssueDate:     issueDate,
			EntryDate:     now,
			TotalHT:       in.TotalHT,
			TotalVAT:      in.TotalVAT,
			TotalTTC:      in.TotalTTC,
			SupplierTaxID: in.SupplierTaxID,
			CustomerTaxID: in.CustomerTaxID,
			PreviousHash:  hashchain.GenesisHash,
		}
		hashchain.Stamp(entry, policy)
		if current != nil && current.LastHash != "" {
			entry.PreviousHash = current.LastHash
		}
		h, err := hashchain.Compute(entry, hashchain.EntryPolicy(entry, policy))
		if err != nil {
			return nil, nil, err
		}
		entry.Hash = h
		next.LastHash = h
		issued = entry
		return &next, entry, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSeriesRequired) {
			return nil, err
		}
		s.log.Error().Err(err).Str("key", key.String()).Msg("no se pudo emitir el número")
		return nil, fmt.Errorf("%w: %w", domain.ErrSequenceAdvance, err)
	}

	s.metrics.NumberIssued(cfg.Code, in.DocumentType)
	s.log.Info().Str("key", key.String()).Str("number", issued.Number).Int64("sequence", issued.Sequence).Msg("número emitido")

	out := &Issued{
		EntryID:      issued.ID,
		Sequence:     issued.Sequence,
		Number:       issued.Number,
		Period:       issued.Period,
		Hash:         issued.Hash,
		PreviousHash: issued.PreviousHash,
		Algorithm:    issued.Algorithm,
		IssuedAt:     issued.EntryDate,
	}
	if cfg.Signature.QRRequired {
		out.QRPayload = QRPayload(issued)
	}
	return out, nil
}

// QRPayload contenido del código QR: número|fecha|total|primeros 16 caracteres del hash.
func QRPayload(e *entity.ChainEntry) string {
	h := e.Hash
	if len(h) > 16 {
		h = h[:16]
	}
	return strings.Join([]string{e.Number, e.IssueDate.Format("2006-01-02"), e.TotalTTC.StringFixed(2), h}, "|")
}

// Release libera el último número emitido si la política del país lo permite. Puede dejar
// un hueco si el número ya se comunicó a terceros.
func (s *Service) Release(ctx context.Context, ref KeyRef, sequence int64) error {
	cfg := s.country(ref.CountryCode)
	if !cfg.Numbering.AllowRelease {
		return domain.ErrReleaseNotPermitted
	}
	key := ref.key()
	ok, err := s.repo.Release(ctx, key, sequence)
	if err != nil {
		return fmt.Errorf("liberar número: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: solo se puede liberar el último número emitido", domain.ErrConflict)
	}
	s.log.Warn().Str("key", key.String()).Int64("sequence", sequence).Msg("número liberado")
	return nil
}

// State estado actual de la secuencia; nil si nunca se emitió.
func (s *Service) State(ctx context.Context, ref KeyRef) (*entity.NumberingSequenceState, error) {
	return s.repo.GetState(ctx, ref.key())
}

// VerifyChain valida la cadena completa de la clave con la política del país.
func (s *Service) VerifyChain(ctx context.Context, ref KeyRef) (hashchain.ValidationResult, error) {
	cfg := s.country(ref.CountryCode)
	entries, err := s.repo.ListChain(ctx, ref.key())
	if err != nil {
		return hashchain.ValidationResult{}, fmt.Errorf("leer cadena: %w", err)
	}
	res, err := hashchain.Validate(entries, cfg.Numbering)
	if err != nil {
		return hashchain.ValidationResult{}, err
	}
	if !res.Valid {
		s.log.Error().Str("key", ref.key().String()).Int64("broken_at", res.BrokenAt).Str("kind", string(res.Kind)).Msg("cadena de hashes rota")
	}
	return res, nil
}

// Gaps huecos del periodo en curso.
func (s *Service) Gaps(ctx context.Context, ref KeyRef) (*GapReport, error) {
	cfg := s.country(ref.CountryCode)
	entries, err := s.repo.ListChain(ctx, ref.key())
	if err != nil {
		return nil, fmt.Errorf("leer cadena: %w", err)
	}
	period := numbering.Period(cfg.Numbering.ResetPeriod, s.clock.Now().UTC())
	var seqs []int64
	for _, e := range entries {
		if e.Period == period {
			seqs = append(seqs, e.Sequence)
		}
	}
	gaps := hashchain.DetectGaps(seqs)
	if gaps == nil {
		gaps = []int64{}
	}
	policy := cfg.Numbering.GapPolicy
	if policy == "" {
		policy = entity.GapAllowed
	}
	return &GapReport{
		Period:    period,
		Policy:    policy,
		Issued:    len(seqs),
		Gaps:      gaps,
		Compliant: policy != entity.GapForbidden || len(gaps) == 0,
	}, nil
}
