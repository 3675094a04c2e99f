package compliance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/vat"
	"github.com/jhoicas/Cumplimiento-api/pkg/taxid"
)

// Resolution contexto y reglas de una operación.
type Resolution struct {
	Context entity.TransactionContext `json:"context"`
	Rules   *entity.ApplicableRules   `json:"rules"`
}

// Service fachada del motor de decisión: hechos -> contexto -> reglas -> importes.
type Service struct {
	countries ports.CountryStore
	builder   *ContextBuilder
	resolver  *RuleResolver
	log       zerolog.Logger
}

// NewService construye la fachada.
func NewService(countries ports.CountryStore, builder *ContextBuilder, resolver *RuleResolver, log zerolog.Logger) *Service {
	return &Service{countries: countries, builder: builder, resolver: resolver, log: log}
}

// Resolve construye el contexto y resuelve las reglas. Solo falla por entrada inválida.
func (s *Service) Resolve(ctx context.Context, f Facts) (*Resolution, error) {
	if f.Company.CountryCode == "" || f.Client.CountryCode == "" {
		return nil, fmt.Errorf("%w: país del emisor y del cliente son obligatorios", domain.ErrInvalidInput)
	}
	tc := s.builder.Build(ctx, f)
	rules := s.resolver.Resolve(tc)
	s.log.Debug().
		Str("supplier", tc.Supplier.CountryCode).
		Str("customer", tc.Customer.CountryCode).
		Str("type", string(tc.Transaction.Type)).
		Str("platform", rules.Transmission.Platform).
		Bool("reverse_charge", rules.VAT.ReverseCharge).
		Msg("reglas resueltas")
	return &Resolution{Context: tc, Rules: rules}, nil
}

// Calculation resolución más importes.
type Calculation struct {
	Resolution
	Totals *vat.Result `json:"totals"`
}

// CalculateVAT resuelve las reglas y calcula los importes de las líneas con ellas.
func (s *Service) CalculateVAT(ctx context.Context, f Facts, lines []vat.Line) (*Calculation, error) {
	res, err := s.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if res.Rules.VAT.ReverseCharge || res.Rules.VAT.TextKey == TextKeyExportExempt {
		// exenta o con inversión: el tipo de cada línea pasa a ser el único tipo resuelto
		zero := res.Rules.VAT.DefaultRate
		forced := make([]vat.Line, len(lines))
		for i, l := range lines {
			l.Rate = &zero
			l.RateCode = ""
			forced[i] = l
		}
		lines = forced
	}
	totals, err := vat.Calculate(lines, res.Rules.VAT)
	if err != nil {
		return nil, err
	}
	return &Calculation{Resolution: *res, Totals: totals}, nil
}

// Country configuración exacta de un país.
func (s *Service) Country(code string) (*entity.CountryConfig, error) {
	cfg, ok := s.countries.Lookup(normalizeCountry(code))
	if !ok {
		return nil, fmt.Errorf("%w: país %s", domain.ErrNotFound, code)
	}
	return cfg, nil
}

// Countries códigos configurados.
func (s *Service) Countries() []string {
	return s.countries.Codes()
}

// ValidateIdentifiers comprueba campos obligatorios, formatos y dígitos de control de los
// identificadores informados. Devuelve todos los problemas unidos con errors.Join.
func ValidateIdentifiers(rules entity.ValidationRules, values map[string]string) error {
	var errs []error
	for _, field := range rules.RequiredFields {
		if values[field] == "" {
			errs = append(errs, fmt.Errorf("%w: %s es obligatorio", domain.ErrValidation, field))
		}
	}
	for _, field := range sortedKeys(rules.IdentifierFormats) {
		pattern := rules.IdentifierFormats[field]
		v := values[field]
		if v == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: patrón inválido para %s", domain.ErrConfigMissing, field))
			continue
		}
		if !re.MatchString(taxid.Clean(v)) {
			errs = append(errs, fmt.Errorf("%w: %s no cumple el formato", domain.ErrValidation, field))
		}
	}
	for _, field := range sortedKeys(rules.IdentifierChecks) {
		algorithm := rules.IdentifierChecks[field]
		v := values[field]
		if v == "" {
			continue
		}
		if err := taxid.Check(algorithm, v); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", domain.ErrValidation, field, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
