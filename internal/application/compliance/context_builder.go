package compliance

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// ContextBuilder convierte hechos crudos en un TransactionContext inmutable.
type ContextBuilder struct {
	countries ports.CountryStore
	checker   *TaxIDChecker
	log       zerolog.Logger
}

// NewContextBuilder checker nil acepta todo NIF-IVA informado.
func NewContextBuilder(countries ports.CountryStore, checker *TaxIDChecker, log zerolog.Logger) *ContextBuilder {
	return &ContextBuilder{countries: countries, checker: checker, log: log}
}

// Build nunca falla por configuración ausente: usa DEFAULT y lo registra.
func (b *ContextBuilder) Build(ctx context.Context, f Facts) entity.TransactionContext {
	supplierCode := normalizeCountry(f.Company.CountryCode)
	customerCode := normalizeCountry(f.Client.CountryCode)
	supplierCfg := b.country(supplierCode, "supplier")
	customerCfg := b.country(customerCode, "customer")

	tc := entity.TransactionContext{
		Supplier: entity.SupplierContext{
			CountryCode:     supplierCode,
			VATNumber:       strings.TrimSpace(f.Company.VATNumber),
			IsVATRegistered: f.Company.IsVATRegistered,
			IsEU:            supplierCfg.IsEU,
		},
		Customer: entity.CustomerContext{
			CountryCode:    customerCode,
			VATNumber:      strings.TrimSpace(f.Client.VATNumber),
			IsPublicEntity: f.Client.IsPublicEntity,
			IsEU:           customerCfg.IsEU,
		},
	}

	if tc.Customer.VATNumber != "" {
		tc.Customer.IsVATRegistered = true
		if tc.Supplier.IsEU && tc.Customer.IsEU && b.checker != nil {
			tc.Customer.IsVATRegistered = b.checker.IsValid(ctx, customerCode, tc.Customer.VATNumber)
		}
	}

	tc.Transaction = entity.TransactionFacts{
		Type:       classifyType(f.Client),
		Nature:     classifyNature(f.Items),
		IsDomestic: supplierCode == customerCode,
		IsIntraEU:  tc.Supplier.IsEU && tc.Customer.IsEU && supplierCode != customerCode,
		IsExport:   !tc.Customer.IsEU && supplierCode != customerCode,
	}

	tc.Place.Delivery = normalizeCountry(f.DeliveryCountry)
	if tc.Place.Delivery == "" {
		tc.Place.Delivery = customerCode
	}
	tc.Place.Performance = supplierCode
	if tc.IsB2BLike() {
		tc.Place.Performance = customerCode
	}
	tc.Place.Taxation = taxationPlace(tc)
	return tc
}

func (b *ContextBuilder) country(code, role string) *entity.CountryConfig {
	cfg, found := b.countries.Resolve(code)
	if !found {
		b.log.Warn().Str("country", code).Str("role", role).Msg("país sin configuración, se usa DEFAULT")
	}
	return cfg
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func classifyType(c ClientFacts) entity.TransactionType {
	switch {
	case c.IsPublicEntity:
		return entity.TransactionB2G
	case c.IsCompany:
		return entity.TransactionB2B
	default:
		return entity.TransactionB2C
	}
}

// classifyNature product/goods son bienes; service, time, labor, deposit y cualquier tipo
// desconocido son servicios. Sin líneas se considera servicio.
func classifyNature(items []ItemFacts) entity.TransactionNature {
	var goods, services bool
	for _, it := range items {
		t := strings.ToLower(strings.TrimSpace(it.Type))
		if goodsItemTypes[t] {
			goods = true
		} else {
			services = true
		}
	}
	switch {
	case goods && services:
		return entity.NatureMixed
	case goods:
		return entity.NatureGoods
	default:
		return entity.NatureServices
	}
}

// taxationPlace precedencia fija; solo la operación intracomunitaria B2B/B2G con cliente
// identificado y naturaleza no mixta tributa en destino.
func taxationPlace(tc entity.TransactionContext) string {
	switch {
	case !tc.Supplier.IsEU:
		return tc.Supplier.CountryCode
	case tc.Transaction.Type == entity.TransactionB2C:
		return tc.Supplier.CountryCode
	case tc.Transaction.IsDomestic:
		return tc.Supplier.CountryCode
	case tc.Transaction.IsExport:
		return tc.Supplier.CountryCode
	case tc.Transaction.Nature == entity.NatureMixed:
		return tc.Supplier.CountryCode
	case tc.Transaction.IsIntraEU && tc.Customer.IsVATRegistered:
		return tc.Customer.CountryCode
	default:
		return tc.Supplier.CountryCode
	}
}
