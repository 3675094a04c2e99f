package repository

import (
	"context"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// ComplianceSettingsRepository credenciales por empresa y plataforma.
type ComplianceSettingsRepository interface {
	// Get devuelve nil, nil si la empresa no configuró la plataforma.
	Get(ctx context.Context, companyID, platform string) (*entity.ComplianceSettings, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.ComplianceSettings, error)
	// Upsert crea o actualiza; un secreto vacío conserva el valor almacenado.
	Upsert(ctx context.Context, s *entity.ComplianceSettings) error
}
