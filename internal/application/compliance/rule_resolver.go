package compliance

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/condition"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// Códigos y claves de texto de los tratamientos especiales.
const (
	RateCodeReverseCharge = "reverse_charge"
	RateCodeExport        = "export"

	TextKeyReverseChargeGoods    = "vat.reverse_charge.goods"
	TextKeyReverseChargeServices = "vat.reverse_charge.services"
	TextKeyExportExempt          = "vat.export_exempt"

	FieldVATNumber       = "vatNumber"
	FieldClientVATNumber = "client.vatNumber"
)

// RuleResolver función pura de contexto + tabla de países. Nunca falla: configuraciones,
// plataformas o condiciones desconocidas degradan a valores seguros y se registran.
type RuleResolver struct {
	countries ports.CountryStore
	log       zerolog.Logger
}

// NewRuleResolver construye el resolver.
func NewRuleResolver(countries ports.CountryStore, log zerolog.Logger) *RuleResolver {
	return &RuleResolver{countries: countries, log: log}
}

// Resolve calcula las reglas aplicables a la operación.
func (r *RuleResolver) Resolve(tc entity.TransactionContext) *entity.ApplicableRules {
	supplier := r.country(tc.Supplier.CountryCode)
	customer := r.country(tc.Customer.CountryCode)

	vat := r.vatRules(tc, supplier)
	return &entity.ApplicableRules{
		VAT:              vat,
		Validation:       r.validationRules(supplier, customer, vat.ReverseCharge),
		Format:           r.formatRules(tc, supplier, customer),
		Transmission:     r.transmissionRule(tc, supplier, customer),
		Numbering:        supplier.Numbering,
		LegalMentionKeys: r.legalMentions(tc, supplier),
		Signature:        supplier.Signature,
		Correction:       supplier.Correction,
	}
}

func (r *RuleResolver) country(code string) *entity.CountryConfig {
	cfg, found := r.countries.Resolve(code)
	if !found {
		r.log.Debug().Str("country", code).Msg("resolviendo con configuración DEFAULT")
	}
	return cfg
}

// ── IVA ──────────────────────────────────────────────────────────────────────

// IsReverseCharge intracomunitaria, cliente identificado y B2B/B2G.
func IsReverseCharge(tc entity.TransactionContext) bool {
	return condition.Evaluate(condition.ReverseCharge(), tc)
}

func (r *RuleResolver) vatRules(tc entity.TransactionContext, supplier *entity.CountryConfig) entity.VATRules {
	switch {
	case IsReverseCharge(tc):
		textKey := TextKeyReverseChargeServices
		if tc.Transaction.Nature == entity.NatureGoods {
			textKey = TextKeyReverseChargeGoods
		}
		return entity.VATRules{
			Rates:         []entity.VATRate{{Code: RateCodeReverseCharge, Rate: decimal.Zero, LabelKey: textKey}},
			DefaultRate:   decimal.Zero,
			ReverseCharge: true,
			TextKey:       textKey,
			Exemptions:    supplier.VAT.Exemptions,
		}
	case tc.Transaction.IsExport:
		return entity.VATRules{
			Rates:       []entity.VATRate{{Code: RateCodeExport, Rate: decimal.Zero, LabelKey: TextKeyExportExempt}},
			DefaultRate: decimal.Zero,
			TextKey:     TextKeyExportExempt,
			Exemptions:  supplier.VAT.Exemptions,
		}
	default:
		return entity.VATRules{
			Rates:       supplier.VAT.Rates,
			DefaultRate: supplier.VAT.DefaultRate,
			Exemptions:  supplier.VAT.Exemptions,
		}
	}
}

// ── validación ───────────────────────────────────────────────────────────────

func (r *RuleResolver) validationRules(supplier, customer *entity.CountryConfig, reverseCharge bool) entity.ValidationRules {
	v := entity.ValidationRules{
		RequiredFields:    []string{},
		IdentifierFormats: map[string]string{},
		IdentifierChecks:  map[string]string{},
	}
	add := func(prefix string, defs []entity.IdentifierDef) {
		for _, d := range defs {
			field := prefix + "." + d.Key
			if d.Pattern != "" {
				v.IdentifierFormats[field] = d.Pattern
			}
			if d.Check != "" {
				v.IdentifierChecks[field] = d.Check
			}
			if d.Required {
				v.RequiredFields = append(v.RequiredFields, field)
			}
		}
	}
	add("company", supplier.Identifiers.Company)
	add("client", customer.Identifiers.Client)

	if supplier.Identifiers.VATNumberPattern != "" {
		v.IdentifierFormats[FieldVATNumber] = supplier.Identifiers.VATNumberPattern
	}
	if reverseCharge {
		v.RequiredFields = append(v.RequiredFields, FieldClientVATNumber)
	}
	return v
}

// ── formato ──────────────────────────────────────────────────────────────────

// formatRules en B2G manda el formato que exige la administración del cliente.
func (r *RuleResolver) formatRules(tc entity.TransactionContext, supplier, customer *entity.CountryConfig) entity.FormatRules {
	f := entity.FormatRules{Format: supplier.Format.Preferred, Accepted: supplier.Format.Accepted}
	if tc.Transaction.Type != entity.TransactionB2G {
		return f
	}
	switch {
	case customer.Format.B2G != "":
		f.Format = customer.Format.B2G
	case supplier.Format.B2G != "":
		f.Format = supplier.Format.B2G
	}
	return f
}

// ── transmisión ──────────────────────────────────────────────────────────────

// transmissionRule precedencia: excepción por país destino, exportación, B2G del país del
// cliente, B2C del emisor, B2B del emisor, email.
func (r *RuleResolver) transmissionRule(tc entity.TransactionContext, supplier, customer *entity.CountryConfig) entity.TransmissionRule {
	st := supplier.Transmission
	name := ""
	if !tc.Transaction.IsDomestic {
		name = st.CrossBorder[tc.Customer.CountryCode]
	}
	if name == "" && tc.Transaction.IsExport {
		name = st.Export
	}
	if name == "" && tc.Transaction.Type == entity.TransactionB2G {
		name = customer.Transmission.B2G
		if name == "" {
			name = customer.Transmission.B2B
		}
	}
	if name == "" && tc.Transaction.Type == entity.TransactionB2C {
		name = st.B2C
	}
	if name == "" {
		name = st.B2B
	}
	if name == "" {
		name = EmailPlatform
	}

	rule, known := PlatformRule(name)
	if !known {
		r.log.Warn().Str("platform", name).Str("country", tc.Supplier.CountryCode).Msg("plataforma desconocida, se usa email")
	}
	return rule
}

// ── menciones legales ────────────────────────────────────────────────────────

func (r *RuleResolver) legalMentions(tc entity.TransactionContext, supplier *entity.CountryConfig) []string {
	seen := make(map[string]bool)
	keys := make([]string, 0, len(supplier.LegalMentions.Mandatory)+len(supplier.LegalMentions.Conditional))
	push := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range supplier.LegalMentions.Mandatory {
		push(k)
	}
	for _, m := range supplier.LegalMentions.Conditional {
		if condition.HasUnknown(m.When.Condition) {
			r.log.Warn().Str("mention", m.Key).Str("country", tc.Supplier.CountryCode).Msg("condición desconocida, se evalúa como falsa")
		}
		if condition.Evaluate(m.When.Condition, tc) {
			push(m.Key)
		}
	}
	return keys
}
