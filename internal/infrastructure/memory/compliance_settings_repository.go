package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
)

var _ repository.ComplianceSettingsRepository = (*ComplianceSettingsRepo)(nil)

// ComplianceSettingsRepo credenciales por empresa en memoria.
type ComplianceSettingsRepo struct {
	mu    sync.RWMutex
	items map[string]entity.ComplianceSettings
}

// NewComplianceSettingsRepository crea el repositorio vacío.
func NewComplianceSettingsRepository() *ComplianceSettingsRepo {
	return &ComplianceSettingsRepo{items: make(map[string]entity.ComplianceSettings)}
}

func settingsKey(companyID, platform string) string { return companyID + "|" + platform }

func (r *ComplianceSettingsRepo) Get(ctx context.Context, companyID, platform string) (*entity.ComplianceSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[settingsKey(companyID, platform)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *ComplianceSettingsRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.ComplianceSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*entity.ComplianceSettings
	for _, s := range r.items {
		if s.CompanyID == companyID {
			cp := s
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Platform < list[j].Platform })
	return list, nil
}

func (r *ComplianceSettingsRepo) Upsert(ctx context.Context, s *entity.ComplianceSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := settingsKey(s.CompanyID, s.Platform)
	next := *s
	if prev, ok := r.items[k]; ok {
		if next.ClientSecret == "" {
			next.ClientSecret = prev.ClientSecret
		}
		if next.APIKey == "" {
			next.APIKey = prev.APIKey
		}
	}
	next.UpdatedAt = time.Now().UTC()
	r.items[k] = next
	s.UpdatedAt = next.UpdatedAt
	return nil
}
