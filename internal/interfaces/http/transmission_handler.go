package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

type transmissionDispatcher interface {
	Send(ctx context.Context, payload *entity.TransmissionPayload) entity.TransmissionResult
	CheckStatus(ctx context.Context, ref entity.TransmissionRef) entity.StatusResult
	Cancel(ctx context.Context, ref entity.TransmissionRef) entity.CancelResult
	Breakers() []resilience.Snapshot
	ResetBreaker(platform string) bool
}

// TransmissionHandler envío de documentos a plataformas fiscales (protegido).
type TransmissionHandler struct {
	dispatcher transmissionDispatcher
}

// NewTransmissionHandler construye el handler.
func NewTransmissionHandler(d transmissionDispatcher) *TransmissionHandler {
	return &TransmissionHandler{dispatcher: d}
}

// resultStatus código HTTP para un resultado uniforme. El cuerpo siempre es el resultado.
func resultStatus(success bool, code string) int {
	if success {
		return fiber.StatusOK
	}
	if transmission.IsValidationCode(code) {
		return fiber.StatusUnprocessableEntity
	}
	switch code {
	case entity.ErrorCodePlatformRejects:
		return fiber.StatusUnprocessableEntity
	case entity.ErrorCodeCircuitOpen:
		return fiber.StatusServiceUnavailable
	case entity.ErrorCodeNotConfigured:
		return fiber.StatusPreconditionFailed
	case entity.ErrorCodeUnsupported:
		return fiber.StatusNotImplemented
	case "":
		return fiber.StatusOK
	default:
		return fiber.StatusBadGateway
	}
}

// Send transmite un documento ya generado.
// POST /api/transmissions
func (h *TransmissionHandler) Send(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.TransmissionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.InvoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invoiceId requerido"})
	}
	res := h.dispatcher.Send(c.UserContext(), in.ToPayload(companyID))
	return c.Status(resultStatus(res.Success, res.ErrorCode)).JSON(res)
}

func (h *TransmissionHandler) ref(c *fiber.Ctx) entity.TransmissionRef {
	return entity.TransmissionRef{
		CompanyID:  GetCompanyID(c),
		Platform:   c.Params("platform"),
		ExternalID: c.Params("externalId"),
	}
}

// Status consulta el estado en la plataforma.
// GET /api/transmissions/:platform/:externalId/status
func (h *TransmissionHandler) Status(c *fiber.Ctx) error {
	if GetCompanyID(c) == "" {
		return unauthorized(c)
	}
	res := h.dispatcher.CheckStatus(c.UserContext(), h.ref(c))
	return c.Status(resultStatus(res.Success, res.ErrorCode)).JSON(res)
}

// Cancel anula en la plataforma. Un solo intento.
// POST /api/transmissions/:platform/:externalId/cancel
func (h *TransmissionHandler) Cancel(c *fiber.Ctx) error {
	if GetCompanyID(c) == "" {
		return unauthorized(c)
	}
	res := h.dispatcher.Cancel(c.UserContext(), h.ref(c))
	return c.Status(resultStatus(res.Success, res.ErrorCode)).JSON(res)
}

// Breakers estado de los circuit breakers por plataforma.
// GET /api/transmissions/breakers
func (h *TransmissionHandler) Breakers(c *fiber.Ctx) error {
	return c.JSON(h.dispatcher.Breakers())
}

// ResetBreaker fuerza el cierre de un breaker. Solo admin.
// POST /api/transmissions/breakers/:platform/reset
func (h *TransmissionHandler) ResetBreaker(c *fiber.Ctx) error {
	platform := c.Params("platform")
	if !h.dispatcher.ResetBreaker(platform) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "no hay breaker para " + platform})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
