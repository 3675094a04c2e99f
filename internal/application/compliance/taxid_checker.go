package compliance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/pkg/taxid"
)

// DefaultTaxIDCacheTTL validez de una respuesta del validador.
const DefaultTaxIDCacheTTL = 24 * time.Hour

// TaxIDValidator colaborador externo (VIES u otro registro fiscal). taxID llega normalizado
// con prefijo de país ("FR12345678901").
type TaxIDValidator interface {
	Validate(ctx context.Context, taxID string) (bool, error)
}

// TaxIDChecker valida identificadores con caché y política fail-open: si el validador
// falla, el identificador se considera válido para no bloquear la facturación.
type TaxIDChecker struct {
	validator TaxIDValidator
	cache     ports.Cache
	ttl       time.Duration
	metrics   ports.Metrics
	log       zerolog.Logger
}

// NewTaxIDChecker validator nil equivale a aceptar todo; cache nil desactiva la caché.
func NewTaxIDChecker(validator TaxIDValidator, cache ports.Cache, ttl time.Duration, metrics ports.Metrics, log zerolog.Logger) *TaxIDChecker {
	if ttl <= 0 {
		ttl = DefaultTaxIDCacheTTL
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &TaxIDChecker{validator: validator, cache: cache, ttl: ttl, metrics: metrics, log: log}
}

func cacheKey(normalized string) string { return "vies|" + normalized }

// IsValid devuelve la validez del NIF-IVA del país indicado.
func (c *TaxIDChecker) IsValid(ctx context.Context, countryCode, vatNumber string) bool {
	id := taxid.Normalize(countryCode, vatNumber)
	if id == "" {
		return false
	}
	if c.validator == nil {
		return true
	}

	if c.cache != nil {
		v, found, err := c.cache.Get(ctx, cacheKey(id))
		if err != nil {
			c.log.Warn().Err(err).Str("tax_id", id).Msg("caché de identificadores no disponible")
		} else if found {
			c.metrics.TaxIDValidation("cache_hit")
			return v == "1"
		}
	}

	valid, err := c.validator.Validate(ctx, id)
	if err != nil {
		// fail-open: no se cachea para volver a consultar en la siguiente operación
		c.log.Warn().Err(err).Str("tax_id", id).Msg("validador fiscal no disponible, se asume válido")
		c.metrics.TaxIDValidation("fail_open")
		return true
	}
	if valid {
		c.metrics.TaxIDValidation("valid")
	} else {
		c.metrics.TaxIDValidation("invalid")
	}

	if c.cache != nil {
		val := "0"
		if valid {
			val = "1"
		}
		if err := c.cache.Set(ctx, cacheKey(id), val, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("tax_id", id).Msg("no se pudo cachear la validación")
		}
	}
	return valid
}
