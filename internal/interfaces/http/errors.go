package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
	"github.com/jhoicas/Cumplimiento-api/internal/domain"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// El orden importa: los errores envueltos con varios sentinelas toman el primero que coincide.
var errorMappings = []errorMapping{
	{domain.ErrSeriesRequired, fiber.StatusBadRequest, "SERIES_REQUIRED"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrValidation, fiber.StatusUnprocessableEntity, "VALIDATION"},
	{domain.ErrCorrectionNotAllowed, fiber.StatusUnprocessableEntity, "CORRECTION_NOT_ALLOWED"},
	{domain.ErrCreditExceedsTotal, fiber.StatusUnprocessableEntity, "CREDIT_EXCEEDS_TOTAL"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrReleaseNotPermitted, fiber.StatusForbidden, "RELEASE_NOT_PERMITTED"},
	{domain.ErrChainIntegrity, fiber.StatusConflict, "CHAIN_INTEGRITY"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrSequenceAdvance, fiber.StatusServiceUnavailable, "SEQUENCE_UNAVAILABLE"},
	{domain.ErrUnknownHashField, fiber.StatusInternalServerError, "CONFIG_ERROR"},
	{domain.ErrUnsupportedHash, fiber.StatusInternalServerError, "CONFIG_ERROR"},
	{domain.ErrConfigMissing, fiber.StatusInternalServerError, "CONFIG_ERROR"},
}

// writeError traduce un error de dominio a su respuesta HTTP.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
