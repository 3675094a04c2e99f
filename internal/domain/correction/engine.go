// Package correction decide cómo rectificar un documento emitido según la política del país.
package correction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/vat"
)

// Action resultado de la decisión.
type Action string

const (
	ActionModify     Action = "modify"
	ActionCreditNote Action = "credit_note"
)

// Status de la rectificación.
type Status string

const (
	StatusCompleted       Status = "completed"
	StatusPendingApproval Status = "pending_approval"
)

// Request solicitud de rectificación. Kind vacío deja decidir al motor: modificación si
// está permitida, abono total si no. Lines (abono por líneas) lleva el ID de una línea
// original y la cantidad positiva a abonar.
type Request struct {
	Document entity.DocumentState
	Policy   entity.CorrectionConfig
	Kind     entity.CreditNoteKind
	Amount   decimal.Decimal
	Lines    []entity.DocumentLine
	Reason   string
}

// CreditNote borrador de factura rectificativa (importes negativos).
type CreditNote struct {
	Kind           entity.CreditNoteKind `json:"kind"`
	OriginalID     string                `json:"originalId"`
	OriginalNumber string                `json:"originalNumber"`
	Reason         string                `json:"reason,omitempty"`
	TotalHT        decimal.Decimal       `json:"totalHT"`
	TotalVAT       decimal.Decimal       `json:"totalVAT"`
	TotalTTC       decimal.Decimal       `json:"totalTTC"`
	Lines          []entity.DocumentLine `json:"lines,omitempty"`
	Breakdown      []vat.Breakdown       `json:"breakdown,omitempty"`
}

// Decision lo que el llamador debe hacer.
type Decision struct {
	Action           Action      `json:"action"`
	Status           Status      `json:"status"`
	Reason           string      `json:"reason"`
	ApprovalEndpoint string      `json:"approvalEndpoint,omitempty"`
	CreditNote       *CreditNote `json:"creditNote,omitempty"`
}

// CanModify la modificación directa exige política que la permita, documento no
// transmitido y estado no terminal. Devuelve el motivo cuando no procede.
func CanModify(doc entity.DocumentState, policy entity.CorrectionConfig) (bool, string) {
	switch {
	case !policy.AllowModification:
		return false, "el país no permite modificar documentos emitidos"
	case doc.WasTransmitted():
		return false, "el documento ya fue transmitido"
	case doc.Status.IsTerminal():
		return false, fmt.Sprintf("el documento está en estado %s", doc.Status)
	default:
		return true, ""
	}
}

// Decide aplica la política de rectificación.
func Decide(req Request) (*Decision, error) {
	canModify, why := CanModify(req.Document, req.Policy)
	if req.Kind == "" {
		if canModify {
			return &Decision{Action: ActionModify, Status: StatusCompleted, Reason: "modificación directa permitida"}, nil
		}
		req.Kind = entity.CreditFull
	}
	if !req.Policy.Allows(req.Kind) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCorrectionNotAllowed, req.Kind)
	}

	var (
		note *CreditNote
		err  error
	)
	switch req.Kind {
	case entity.CreditFull:
		note = fullCredit(req.Document)
	case entity.CreditPartialAmount:
		note, err = partialAmount(req.Document, req.Amount)
	case entity.CreditPartialLines:
		note, err = partialLines(req.Document, req.Lines)
	default:
		return nil, fmt.Errorf("%w: tipo de abono %q", domain.ErrInvalidInput, req.Kind)
	}
	if err != nil {
		return nil, err
	}
	note.Kind = req.Kind
	note.OriginalID = req.Document.ID
	note.OriginalNumber = req.Document.Number
	note.Reason = req.Reason

	if why == "" {
		why = "abono solicitado"
	}
	d := &Decision{Action: ActionCreditNote, Status: StatusCompleted, Reason: why, CreditNote: note}
	if req.Policy.RequiresApproval {
		d.Status = StatusPendingApproval
		d.ApprovalEndpoint = req.Policy.ApprovalEndpoint
	}
	return d, nil
}

func fullCredit(doc entity.DocumentState) *CreditNote {
	lines := make([]entity.DocumentLine, len(doc.Lines))
	for i, l := range doc.Lines {
		l.Quantity = l.Quantity.Neg()
		lines[i] = l
	}
	return &CreditNote{
		TotalHT:  doc.TotalHT.Neg(),
		TotalVAT: doc.TotalVAT.Neg(),
		TotalTTC: doc.TotalTTC.Neg(),
		Lines:    lines,
	}
}

// partialAmount prorratea HT e IVA por amount/TTC; TTC del abono = HT + IVA redondeados.
func partialAmount(doc entity.DocumentState, amount decimal.Decimal) (*CreditNote, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: el importe a abonar debe ser positivo", domain.ErrInvalidInput)
	}
	if !doc.TotalTTC.IsPositive() {
		return nil, fmt.Errorf("%w: el documento no tiene total a abonar", domain.ErrInvalidInput)
	}
	if amount.GreaterThan(doc.TotalTTC) {
		return nil, domain.ErrCreditExceedsTotal
	}
	ratio := amount.Div(doc.TotalTTC)
	ht := doc.TotalHT.Mul(ratio).Round(2).Neg()
	tax := doc.TotalVAT.Mul(ratio).Round(2).Neg()
	return &CreditNote{TotalHT: ht, TotalVAT: tax, TotalTTC: ht.Add(tax)}, nil
}

// partialLines cada línea pedida debe existir en el documento original; precio y tipo se
// toman del original y las cantidades pedidas para un mismo ID se acumulan contra la facturada.
func partialLines(doc entity.DocumentState, requested []entity.DocumentLine) (*CreditNote, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: sin líneas a abonar", domain.ErrInvalidInput)
	}
	byID := make(map[string]entity.DocumentLine, len(doc.Lines))
	for _, l := range doc.Lines {
		if l.ID != "" {
			byID[l.ID] = l
		}
	}

	credited := make([]entity.DocumentLine, 0, len(requested))
	calc := make([]vat.Line, 0, len(requested))
	used := make(map[string]decimal.Decimal, len(requested))
	for i, r := range requested {
		if !r.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: línea %d con cantidad no positiva", domain.ErrInvalidInput, i+1)
		}
		orig, ok := byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("%w: la línea %q no existe en el documento %s", domain.ErrInvalidInput, r.ID, doc.Number)
		}
		used[r.ID] = used[r.ID].Add(r.Quantity)
		if used[r.ID].GreaterThan(orig.Quantity) {
			return nil, fmt.Errorf("%w: línea %s abona más cantidad de la facturada", domain.ErrCreditExceedsTotal, r.ID)
		}
		line := orig
		line.Quantity = r.Quantity.Neg()
		credited = append(credited, line)

		rate := line.Rate
		calc = append(calc, vat.Line{Quantity: line.Quantity, UnitPrice: line.UnitPrice, Rate: &rate})
	}

	res, err := vat.Calculate(calc, entity.VATRules{ReverseCharge: doc.ReverseCharge})
	if err != nil {
		return nil, err
	}
	return &CreditNote{
		TotalHT:   res.TotalHT,
		TotalVAT:  res.TotalVAT,
		TotalTTC:  res.TotalTTC,
		Lines:     credited,
		Breakdown: res.Breakdown,
	}, nil
}
