package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/vat"
)

type complianceEngine interface {
	Resolve(ctx context.Context, f compliance.Facts) (*compliance.Resolution, error)
	CalculateVAT(ctx context.Context, f compliance.Facts, lines []vat.Line) (*compliance.Calculation, error)
	Country(code string) (*entity.CountryConfig, error)
	Countries() []string
}

// ComplianceHandler motor de decisión y credenciales por plataforma (protegido).
type ComplianceHandler struct {
	engine   complianceEngine
	settings repository.ComplianceSettingsRepository
}

// NewComplianceHandler construye el handler.
func NewComplianceHandler(engine complianceEngine, settings repository.ComplianceSettingsRepository) *ComplianceHandler {
	return &ComplianceHandler{engine: engine, settings: settings}
}

// Resolve contexto de la operación y reglas aplicables.
// POST /api/compliance/resolve
func (h *ComplianceHandler) Resolve(c *fiber.Ctx) error {
	var in compliance.Facts
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.Resolve(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// VAT desglose de IVA con las reglas resueltas.
// POST /api/compliance/vat
func (h *ComplianceHandler) VAT(c *fiber.Ctx) error {
	var in dto.VATRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.CalculateVAT(c.UserContext(), in.Facts, in.Lines)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Countries códigos configurados.
// GET /api/compliance/countries
func (h *ComplianceHandler) Countries(c *fiber.Ctx) error {
	return c.JSON(dto.CountriesResponse{Countries: h.engine.Countries()})
}

// Country configuración exacta de un país; DEFAULT no se sirve como sustituto.
// GET /api/compliance/countries/:code
func (h *ComplianceHandler) Country(c *fiber.Ctx) error {
	cfg, err := h.engine.Country(c.Params("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cfg)
}

// ListSettings credenciales de la empresa, enmascaradas.
// GET /api/compliance/settings
func (h *ComplianceHandler) ListSettings(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	list, err := h.settings.ListByCompany(c.UserContext(), companyID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]entity.ComplianceSettingsView, 0, len(list))
	for _, s := range list {
		out = append(out, s.Masked())
	}
	return c.JSON(out)
}

// GetSettings credenciales de una plataforma, enmascaradas.
// GET /api/compliance/settings/:platform
func (h *ComplianceHandler) GetSettings(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	s, err := h.settings.Get(c.UserContext(), companyID, strings.ToLower(c.Params("platform")))
	if err != nil {
		return writeError(c, err)
	}
	if s == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "plataforma sin configurar"})
	}
	return c.JSON(s.Masked())
}

// PutSettings crea o actualiza las credenciales. Solo admin.
// PUT /api/compliance/settings/:platform
func (h *ComplianceHandler) PutSettings(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.SettingsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	platform := strings.ToLower(strings.TrimSpace(c.Params("platform")))
	if platform == "" || strings.TrimSpace(in.APIURL) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "plataforma y apiUrl son obligatorios"})
	}
	s := &entity.ComplianceSettings{
		CompanyID:    companyID,
		Platform:     platform,
		APIURL:       strings.TrimSpace(in.APIURL),
		TokenURL:     strings.TrimSpace(in.TokenURL),
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		APIKey:       in.APIKey,
	}
	if err := h.settings.Upsert(c.UserContext(), s); err != nil {
		return writeError(c, err)
	}
	stored, err := h.settings.Get(c.UserContext(), companyID, platform)
	if err != nil {
		return writeError(c, err)
	}
	if stored == nil {
		stored = s
	}
	return c.JSON(stored.Masked())
}
