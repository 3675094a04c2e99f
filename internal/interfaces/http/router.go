package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Compliance   *compliance.Service
	Corrections  *compliance.CorrectionService
	Ledger       *ledger.Service
	Dispatcher   *transmission.Dispatcher
	SettingsRepo repository.ComplianceSettingsRepository
	Features     config.FeatureFlags
	JWTSecret    string
}

// Router registra las rutas de la API. Todo /api exige Bearer Token; la empresa sale
// del token, nunca del cuerpo.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(RoleAdmin, RoleOperator, RoleAuditor)
	writers := RequireRole(RoleAdmin, RoleOperator)
	adminOnly := RequireRole(RoleAdmin)

	// Motor de decisión
	complianceGroup := api.Group("/compliance")
	complianceHandler := NewComplianceHandler(deps.Compliance, deps.SettingsRepo)
	complianceGroup.Post("/resolve", anyRole, complianceHandler.Resolve)
	complianceGroup.Post("/vat", anyRole, complianceHandler.VAT)
	complianceGroup.Get("/countries", anyRole, complianceHandler.Countries)
	complianceGroup.Get("/countries/:code", anyRole, complianceHandler.Country)
	complianceGroup.Get("/settings", adminOnly, complianceHandler.ListSettings)
	complianceGroup.Get("/settings/:platform", adminOnly, complianceHandler.GetSettings)
	complianceGroup.Put("/settings/:platform", adminOnly, complianceHandler.PutSettings)

	// Numeración y cadena
	numbering := api.Group("/numbering")
	numberingHandler := NewNumberingHandler(deps.Ledger)
	numbering.Post("/next", writers, numberingHandler.Next)
	numbering.Post("/release", adminOnly, numberingHandler.Release)
	numbering.Get("/state", anyRole, numberingHandler.State)
	numbering.Get("/chain", anyRole, numberingHandler.Chain)
	numbering.Get("/gaps", anyRole, numberingHandler.Gaps)

	// Transmisión
	transmissions := api.Group("/transmissions", RequireModule("transmissions", deps.Features.Transmissions))
	transmissionHandler := NewTransmissionHandler(deps.Dispatcher)
	transmissions.Get("/breakers", anyRole, transmissionHandler.Breakers)
	transmissions.Post("/breakers/:platform/reset", adminOnly, transmissionHandler.ResetBreaker)
	transmissions.Post("/", writers, transmissionHandler.Send)
	transmissions.Get("/:platform/:externalId/status", anyRole, transmissionHandler.Status)
	transmissions.Post("/:platform/:externalId/cancel", writers, transmissionHandler.Cancel)

	// Rectificaciones
	corrections := api.Group("/corrections", RequireModule("corrections", deps.Features.Corrections))
	correctionHandler := NewCorrectionHandler(deps.Corrections)
	corrections.Post("/", writers, correctionHandler.Correct)
}
