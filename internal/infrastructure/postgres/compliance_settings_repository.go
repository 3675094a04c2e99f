package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
)

var _ repository.ComplianceSettingsRepository = (*ComplianceSettingsRepo)(nil)

// ComplianceSettingsRepo credenciales de plataforma por empresa.
type ComplianceSettingsRepo struct {
	pool *pgxpool.Pool
}

// NewComplianceSettingsRepository construye el repositorio.
func NewComplianceSettingsRepository(pool *pgxpool.Pool) *ComplianceSettingsRepo {
	return &ComplianceSettingsRepo{pool: pool}
}

const settingsColumns = `company_id, platform, api_url, token_url, client_id, client_secret, api_key, updated_at`

func scanSettings(row pgx.Row) (*entity.ComplianceSettings, error) {
	var s entity.ComplianceSettings
	if err := row.Scan(&s.CompanyID, &s.Platform, &s.APIURL, &s.TokenURL, &s.ClientID,
		&s.ClientSecret, &s.APIKey, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ComplianceSettingsRepo) Get(ctx context.Context, companyID, platform string) (*entity.ComplianceSettings, error) {
	q := `SELECT ` + settingsColumns + ` FROM compliance_settings WHERE company_id = $1 AND platform = $2`
	s, err := scanSettings(r.pool.QueryRow(ctx, q, companyID, platform))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get compliance_settings: %w", err)
	}
	return s, nil
}

func (r *ComplianceSettingsRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.ComplianceSettings, error) {
	q := `SELECT ` + settingsColumns + ` FROM compliance_settings WHERE company_id = $1 ORDER BY platform`
	rows, err := r.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list compliance_settings: %w", err)
	}
	defer rows.Close()
	var list []*entity.ComplianceSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance_settings: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Upsert un secreto vacío conserva el almacenado (el cliente nunca lo recibe de vuelta).
func (r *ComplianceSettingsRepo) Upsert(ctx context.Context, s *entity.ComplianceSettings) error {
	const q = `
		INSERT INTO compliance_settings
			(company_id, platform, api_url, token_url, client_id, client_secret, api_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (company_id, platform) DO UPDATE SET
			api_url       = EXCLUDED.api_url,
			token_url     = EXCLUDED.token_url,
			client_id     = EXCLUDED.client_id,
			client_secret = COALESCE(NULLIF(EXCLUDED.client_secret, ''), compliance_settings.client_secret),
			api_key       = COALESCE(NULLIF(EXCLUDED.api_key, ''), compliance_settings.api_key),
			updated_at    = now()
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, s.CompanyID, s.Platform, s.APIURL, s.TokenURL, s.ClientID,
		s.ClientSecret, s.APIKey).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert compliance_settings: %w", err)
	}
	return nil
}
