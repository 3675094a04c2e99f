// Package countries carga la tabla de cumplimiento por país (YAML embebido más un fichero
// opcional que sustituye países completos) y la sirve de forma inmutable.
package countries

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/hashchain"
)

//go:embed countries.yaml
var embeddedTable []byte

var _ ports.CountryStore = (*Store)(nil)

// Store tabla de países. Solo lectura tras la construcción.
type Store struct {
	byCode map[string]*entity.CountryConfig
	codes  []string
}

// Load tabla embebida; si overridePath no está vacío sus países reemplazan a los embebidos.
func Load(overridePath string) (*Store, error) {
	table, err := decode(embeddedTable)
	if err != nil {
		return nil, fmt.Errorf("tabla de países embebida: %w", err)
	}
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("leer %s: %w", overridePath, err)
		}
		extra, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("tabla de países %s: %w", overridePath, err)
		}
		for code, cfg := range extra {
			table[code] = cfg
		}
	}
	return New(table)
}

// Parse construye la tabla a partir de un documento YAML.
func Parse(data []byte) (*Store, error) {
	table, err := decode(data)
	if err != nil {
		return nil, err
	}
	return New(table)
}

// New valida y congela la tabla. DEFAULT es obligatorio.
func New(table map[string]entity.CountryConfig) (*Store, error) {
	s := &Store{byCode: make(map[string]*entity.CountryConfig, len(table))}
	for raw, cfg := range table {
		code := strings.ToUpper(strings.TrimSpace(raw))
		cfg.Code = code
		if err := validate(&cfg); err != nil {
			return nil, fmt.Errorf("país %s: %w", code, err)
		}
		c := cfg
		s.byCode[code] = &c
		if code != entity.DefaultCountryCode {
			s.codes = append(s.codes, code)
		}
	}
	if _, ok := s.byCode[entity.DefaultCountryCode]; !ok {
		return nil, fmt.Errorf("la tabla de países no define %s", entity.DefaultCountryCode)
	}
	sort.Strings(s.codes)
	return s, nil
}

func decode(data []byte) (map[string]entity.CountryConfig, error) {
	var table map[string]entity.CountryConfig
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	if table == nil {
		table = map[string]entity.CountryConfig{}
	}
	return table, nil
}

func validate(cfg *entity.CountryConfig) error {
	if err := hashchain.ValidatePolicy(cfg.Numbering); err != nil {
		return err
	}
	patterns := []string{cfg.Identifiers.VATNumberPattern}
	for _, d := range cfg.Identifiers.Company {
		patterns = append(patterns, d.Pattern)
	}
	for _, d := range cfg.Identifiers.Client {
		patterns = append(patterns, d.Pattern)
	}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("patrón %q: %w", p, err)
		}
	}
	for _, r := range cfg.VAT.Rates {
		if r.Rate.IsNegative() {
			return fmt.Errorf("tipo %s negativo", r.Code)
		}
	}
	return nil
}

// Lookup configuración exacta.
func (s *Store) Lookup(code string) (*entity.CountryConfig, bool) {
	cfg, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return cfg, ok
}

// Resolve país o DEFAULT.
func (s *Store) Resolve(code string) (*entity.CountryConfig, bool) {
	if cfg, ok := s.Lookup(code); ok {
		return cfg, true
	}
	return s.byCode[entity.DefaultCountryCode], false
}

// Codes países configurados sin DEFAULT.
func (s *Store) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}
