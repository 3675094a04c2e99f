package vat_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/vat"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) *decimal.Decimal {
	r := d(s)
	return &r
}

var frRules = entity.VATRules{
	Rates: []entity.VATRate{
		{Code: "standard", Rate: d("20")},
		{Code: "intermediate", Rate: d("10")},
		{Code: "reduced", Rate: d("5.5")},
	},
	DefaultRate: d("20"),
}

// ──────────────────────────────────────────────────────────────────────────────
// Redondeo por grupo
// ──────────────────────────────────────────────────────────────────────────────

func TestCalculate_RedondeoPorGrupo(t *testing.T) {
	res, err := vat.Calculate([]vat.Line{{Quantity: d("3"), UnitPrice: d("10.005"), Rate: rate("20")}}, frRules)
	require.NoError(t, err)

	assert.True(t, d("30.02").Equal(res.TotalHT), "base 30.015 redondeada a 30.02, obtenido %s", res.TotalHT)
	assert.True(t, d("6.00").Equal(res.TotalVAT), "cuota 6.003 redondeada a 6.00, obtenido %s", res.TotalVAT)
	assert.True(t, res.TotalHT.Add(res.TotalVAT).Equal(res.TotalTTC), "TTC = HT + IVA redondeados")
	assert.True(t, d("36.02").Equal(res.TotalTTC))
}

func TestCalculate_SumaDeGruposRedondeados(t *testing.T) {
	// Dos grupos con medio céntimo cada uno: redondear por grupo da 0.02 más que redondear al final.
	lines := []vat.Line{
		{Quantity: d("1"), UnitPrice: d("0.025"), Rate: rate("20")},
		{Quantity: d("1"), UnitPrice: d("0.025"), Rate: rate("10")},
	}
	res, err := vat.Calculate(lines, frRules)
	require.NoError(t, err)

	require.Len(t, res.Breakdown, 2)
	assert.True(t, d("0.03").Equal(res.Breakdown[0].Base))
	assert.True(t, d("0.06").Equal(res.TotalHT), "0.03 + 0.03, no round(0.05)")
}

func TestCalculate_DesgloseOrdenadoYAgrupado(t *testing.T) {
	lines := []vat.Line{
		{Quantity: d("2"), UnitPrice: d("50"), RateCode: "standard"},
		{Quantity: d("1"), UnitPrice: d("100"), RateCode: "reduced"},
		{Quantity: d("1"), UnitPrice: d("100")}, // tipo por defecto (20)
	}
	res, err := vat.Calculate(lines, frRules)
	require.NoError(t, err)

	require.Len(t, res.Breakdown, 2, "el tipo por defecto se agrupa con el estándar")
	assert.True(t, d("5.5").Equal(res.Breakdown[0].Rate))
	assert.True(t, d("5.50").Equal(res.Breakdown[0].Tax))
	assert.True(t, d("200").Equal(res.Breakdown[1].Base))
	assert.True(t, d("40").Equal(res.Breakdown[1].Tax))
	assert.True(t, d("345.50").Equal(res.TotalTTC))
}

func TestCalculate_InversionSujetoPasivo(t *testing.T) {
	rules := entity.VATRules{
		Rates:         []entity.VATRate{{Code: "reverse_charge", Rate: decimal.Zero}},
		DefaultRate:   decimal.Zero,
		ReverseCharge: true,
	}
	res, err := vat.Calculate([]vat.Line{{Quantity: d("1"), UnitPrice: d("1000"), Rate: rate("20")}}, rules)
	require.NoError(t, err)

	assert.True(t, res.ReverseCharge)
	assert.True(t, res.TotalVAT.IsZero(), "con autoliquidación no se repercute IVA")
	assert.True(t, d("1000").Equal(res.TotalTTC))
}

func TestCalculate_CantidadesNegativas(t *testing.T) {
	res, err := vat.Calculate([]vat.Line{{Quantity: d("-2"), UnitPrice: d("10"), Rate: rate("20")}}, frRules)
	require.NoError(t, err)
	assert.True(t, d("-24").Equal(res.TotalTTC), "las líneas de abono producen totales negativos")
}

func TestCalculate_Errores(t *testing.T) {
	_, err := vat.Calculate([]vat.Line{{Quantity: d("1"), UnitPrice: d("1"), RateCode: "super_reduced"}}, frRules)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = vat.Calculate([]vat.Line{{Quantity: d("1"), UnitPrice: d("1"), Rate: rate("-1")}}, frRules)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err := vat.Calculate(nil, frRules)
	require.NoError(t, err)
	assert.True(t, res.TotalTTC.IsZero())
	assert.Empty(t, res.Breakdown)
}
