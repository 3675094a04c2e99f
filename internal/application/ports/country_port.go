package ports

import "github.com/jhoicas/Cumplimiento-api/internal/domain/entity"

// CountryStore tabla de países cargada una vez por proceso.
type CountryStore interface {
	// Lookup devuelve la configuración exacta del país, sin fallback.
	Lookup(code string) (*entity.CountryConfig, bool)
	// Resolve devuelve el país o la configuración DEFAULT; found indica si existía.
	Resolve(code string) (cfg *entity.CountryConfig, found bool)
	// Codes códigos ISO cargados (sin DEFAULT), ordenados.
	Codes() []string
}
