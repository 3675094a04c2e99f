package platform

import (
	"context"
	"fmt"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
)

// Credentials endpoint y secretos efectivos de una plataforma para una empresa.
type Credentials struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	APIKey       string
}

func (c Credentials) configured() bool {
	return c.BaseURL != "" && (c.APIKey != "" || (c.ClientID != "" && c.ClientSecret != ""))
}

// CredentialResolver busca primero la configuración de la empresa y después la de entorno.
type CredentialResolver struct {
	settings repository.ComplianceSettingsRepository
	env      map[string]config.PlatformConfig
}

// NewCredentialResolver settings puede ser nil (solo variables de entorno).
func NewCredentialResolver(settings repository.ComplianceSettingsRepository, env map[string]config.PlatformConfig) *CredentialResolver {
	return &CredentialResolver{settings: settings, env: env}
}

// Resolve devuelve ok=false si ni la empresa ni el entorno tienen credenciales completas.
func (r *CredentialResolver) Resolve(ctx context.Context, companyID, platform string) (Credentials, bool, error) {
	if r.settings != nil && companyID != "" {
		s, err := r.settings.Get(ctx, companyID, platform)
		if err != nil {
			return Credentials{}, false, fmt.Errorf("leer credenciales de %s: %w", platform, err)
		}
		if s != nil {
			c := Credentials{BaseURL: s.APIURL, TokenURL: s.TokenURL, ClientID: s.ClientID, ClientSecret: s.ClientSecret, APIKey: s.APIKey}
			if c.configured() {
				return c, true, nil
			}
		}
	}
	e, ok := r.env[platform]
	if !ok {
		return Credentials{}, false, nil
	}
	c := Credentials{BaseURL: e.BaseURL, TokenURL: e.TokenURL, ClientID: e.ClientID, ClientSecret: e.ClientSecret, APIKey: e.APIKey}
	return c, c.configured(), nil
}
