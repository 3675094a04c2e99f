package entity

import "time"

// ComplianceSettings credenciales y endpoint de una plataforma para una empresa.
// Los secretos nunca salen en respuestas externas: ver ComplianceSettingsView.
type ComplianceSettings struct {
	CompanyID    string
	Platform     string
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	APIKey       string
	UpdatedAt    time.Time
}

// ComplianceSettingsView forma enmascarada.
type ComplianceSettingsView struct {
	CompanyID       string    `json:"companyId"`
	Platform        string    `json:"platform"`
	APIURL          string    `json:"apiUrl"`
	TokenURL        string    `json:"tokenUrl,omitempty"`
	ClientID        string    `json:"clientId"`
	ClientSecretSet bool      `json:"clientSecretSet"`
	APIKeySet       bool      `json:"apiKeySet"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Masked sustituye los secretos por banderas is-set.
func (s ComplianceSettings) Masked() ComplianceSettingsView {
	return ComplianceSettingsView{
		CompanyID:       s.CompanyID,
		Platform:        s.Platform,
		APIURL:          s.APIURL,
		TokenURL:        s.TokenURL,
		ClientID:        s.ClientID,
		ClientSecretSet: s.ClientSecret != "",
		APIKeySet:       s.APIKey != "",
		UpdatedAt:       s.UpdatedAt,
	}
}
