package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/hashchain"
)

type numberingLedger interface {
	Next(ctx context.Context, in ledger.NextInput) (*ledger.Issued, error)
	Release(ctx context.Context, ref ledger.KeyRef, sequence int64) error
	State(ctx context.Context, ref ledger.KeyRef) (*entity.NumberingSequenceState, error)
	VerifyChain(ctx context.Context, ref ledger.KeyRef) (hashchain.ValidationResult, error)
	Gaps(ctx context.Context, ref ledger.KeyRef) (*ledger.GapReport, error)
}

// NumberingHandler numeración legal y cadena de hashes (protegido).
type NumberingHandler struct {
	ledger numberingLedger
}

// NewNumberingHandler construye el handler.
func NewNumberingHandler(l numberingLedger) *NumberingHandler {
	return &NumberingHandler{ledger: l}
}

// Next emite el siguiente número de la serie.
// POST /api/numbering/next
func (h *NumberingHandler) Next(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.NextNumberRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	next := ledger.NextInput{
		CompanyID:     companyID,
		CountryCode:   in.CountryCode,
		Series:        in.Series,
		DocumentType:  in.DocumentType,
		TotalHT:       in.TotalHT,
		TotalVAT:      in.TotalVAT,
		TotalTTC:      in.TotalTTC,
		SupplierTaxID: in.SupplierTaxID,
		CustomerTaxID: in.CustomerTaxID,
	}
	if in.IssueDate != nil {
		next.IssueDate = *in.IssueDate
	}
	issued, err := h.ledger.Next(c.UserContext(), next)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(issued)
}

// Release libera el último número emitido. Solo admin y solo si el país lo permite.
// POST /api/numbering/release
func (h *NumberingHandler) Release(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.ReleaseNumberRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Sequence <= 0 || in.DocumentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "documentType y sequence son obligatorios"})
	}
	ref := ledger.KeyRef{CompanyID: companyID, CountryCode: in.CountryCode, Series: in.Series, DocumentType: in.DocumentType}
	if err := h.ledger.Release(c.UserContext(), ref, in.Sequence); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NumberingHandler) keyRef(c *fiber.Ctx) (ledger.KeyRef, error) {
	var q dto.ChainQuery
	if err := c.QueryParser(&q); err != nil {
		return ledger.KeyRef{}, err
	}
	return ledger.KeyRef{CompanyID: GetCompanyID(c), CountryCode: q.CountryCode, Series: q.Series, DocumentType: q.DocumentType}, nil
}

// State estado actual de la secuencia.
// GET /api/numbering/state?country=&series=&documentType=
func (h *NumberingHandler) State(c *fiber.Ctx) error {
	if GetCompanyID(c) == "" {
		return unauthorized(c)
	}
	ref, err := h.keyRef(c)
	if err != nil || ref.DocumentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "documentType requerido"})
	}
	st, err := h.ledger.State(c.UserContext(), ref)
	if err != nil {
		return writeError(c, err)
	}
	if st == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la serie no tiene números emitidos"})
	}
	return c.JSON(st)
}

// Chain valida la cadena completa de la serie. Una cadena rota responde 200 con valid=false.
// GET /api/numbering/chain?country=&series=&documentType=
func (h *NumberingHandler) Chain(c *fiber.Ctx) error {
	if GetCompanyID(c) == "" {
		return unauthorized(c)
	}
	ref, err := h.keyRef(c)
	if err != nil || ref.DocumentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "documentType requerido"})
	}
	res, err := h.ledger.VerifyChain(c.UserContext(), ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Gaps huecos del periodo en curso.
// GET /api/numbering/gaps?country=&series=&documentType=
func (h *NumberingHandler) Gaps(c *fiber.Ctx) error {
	if GetCompanyID(c) == "" {
		return unauthorized(c)
	}
	ref, err := h.keyRef(c)
	if err != nil || ref.DocumentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "documentType requerido"})
	}
	rep, err := h.ledger.Gaps(c.UserContext(), ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rep)
}
