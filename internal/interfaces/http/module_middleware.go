package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
)

// RequireModule corta el grupo de rutas cuando el módulo está apagado en la configuración
// del despliegue (FEATURE_TRANSMISSIONS, FEATURE_CORRECTIONS). Debe usarse después de
// AuthMiddleware para no revelar módulos a peticiones anónimas.
func RequireModule(moduleName string, enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetCompanyID(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "company_id no encontrado en el token",
			})
		}
		if !enabled {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "MODULE_DISABLED",
				Message: "el módulo '" + moduleName + "' no está activo en este despliegue",
			})
		}
		return c.Next()
	}
}
