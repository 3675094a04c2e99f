package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
)

type corrector interface {
	Correct(ctx context.Context, req compliance.CorrectionRequest) (*compliance.CorrectionResult, error)
}

// CorrectionHandler rectificación de documentos emitidos (protegido).
type CorrectionHandler struct {
	svc corrector
}

// NewCorrectionHandler construye el handler.
func NewCorrectionHandler(svc corrector) *CorrectionHandler {
	return &CorrectionHandler{svc: svc}
}

// Correct decide entre modificar el documento o emitir un abono.
// POST /api/corrections
func (h *CorrectionHandler) Correct(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in compliance.CorrectionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.CompanyID = companyID
	res, err := h.svc.Correct(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}
