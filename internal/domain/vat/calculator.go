// Package vat: cálculo de bases e impuestos por tipo.
//
// Regla de redondeo: se agrupan las líneas por tipo, se redondean a 2 decimales la base y
// la cuota de cada grupo, y los totales son la suma de esos valores ya redondeados.
// TTC = HT redondeado + IVA redondeado, nunca round(HT+IVA).
package vat

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// Line línea a calcular. Precedencia del tipo: Rate, luego RateCode, luego tipo por defecto.
type Line struct {
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	RateCode  string           `json:"rateCode,omitempty"`
}

// Breakdown desglose de un tipo.
type Breakdown struct {
	Rate decimal.Decimal `json:"rate"`
	Base decimal.Decimal `json:"base"`
	Tax  decimal.Decimal `json:"tax"`
}

// Result totales del documento.
type Result struct {
	TotalHT       decimal.Decimal `json:"totalHT"`
	TotalVAT      decimal.Decimal `json:"totalVAT"`
	TotalTTC      decimal.Decimal `json:"totalTTC"`
	Breakdown     []Breakdown     `json:"breakdown"`
	ReverseCharge bool            `json:"reverseCharge"`
}

// Calculate aplica las reglas de IVA resueltas a las líneas. Con inversión del sujeto
// pasivo la cuota de cada grupo es 0.
func Calculate(lines []Line, rules entity.VATRules) (*Result, error) {
	groups := make(map[string]*Breakdown)
	for i, l := range lines {
		rate, err := lineRate(l, rules)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", i+1, err)
		}
		key := rate.String()
		g, ok := groups[key]
		if !ok {
			g = &Breakdown{Rate: rate, Base: decimal.Zero}
			groups[key] = g
		}
		g.Base = g.Base.Add(l.Quantity.Mul(l.UnitPrice))
	}

	res := &Result{
		TotalHT:       decimal.Zero,
		TotalVAT:      decimal.Zero,
		ReverseCharge: rules.ReverseCharge,
		Breakdown:     make([]Breakdown, 0, len(groups)),
	}
	for _, g := range groups {
		tax := decimal.Zero
		if !rules.ReverseCharge {
			tax = g.Base.Mul(g.Rate).Div(hundred).Round(2)
		}
		b := Breakdown{Rate: g.Rate, Base: g.Base.Round(2), Tax: tax}
		res.Breakdown = append(res.Breakdown, b)
		res.TotalHT = res.TotalHT.Add(b.Base)
		res.TotalVAT = res.TotalVAT.Add(b.Tax)
	}
	sort.Slice(res.Breakdown, func(i, j int) bool {
		return res.Breakdown[i].Rate.LessThan(res.Breakdown[j].Rate)
	})
	res.TotalTTC = res.TotalHT.Add(res.TotalVAT)
	return res, nil
}

func lineRate(l Line, rules entity.VATRules) (decimal.Decimal, error) {
	if l.Rate != nil {
		if l.Rate.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: tipo negativo %s", domain.ErrInvalidInput, l.Rate)
		}
		return *l.Rate, nil
	}
	if l.RateCode != "" {
		r, ok := rules.RateFor(l.RateCode)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: código de tipo desconocido %q", domain.ErrInvalidInput, l.RateCode)
		}
		return r, nil
	}
	return rules.DefaultRate, nil
}
