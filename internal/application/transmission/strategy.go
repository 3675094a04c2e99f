// Package transmission enruta documentos a la estrategia de cada plataforma y envuelve
// cada llamada externa en circuit breaker, reintentos y timeout por intento.
package transmission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// Strategy colaborador de una o varias plataformas. El dispatcher no conoce su formato de
// cable: solo interpreta TransmissionResult y los errores devueltos.
//
// Convención de errores: un error devuelto significa que la plataforma no respondió
// (red, timeout, 5xx) y puede reintentarse si es transitorio; un rechazo de la
// plataforma o de validación local se devuelve como resultado con Success=false.
type Strategy interface {
	Name() string
	Supports(platform string) bool
	Send(ctx context.Context, payload *entity.TransmissionPayload) (*entity.TransmissionResult, error)
	CheckStatus(ctx context.Context, ref entity.TransmissionRef) (*entity.StatusResult, error)
	Cancel(ctx context.Context, ref entity.TransmissionRef) (bool, error)
}

// ErrUnsupported para plataformas sin operación de consulta o anulación.
var ErrUnsupported = errors.New("operación no soportada por la plataforma")

// Registry lista ordenada de estrategias más la de email como último recurso. Se arma
// una vez al arrancar y no cambia.
type Registry struct {
	strategies []Strategy
	fallback   Strategy
}

// NewRegistry fallback es obligatorio.
func NewRegistry(fallback Strategy, strategies ...Strategy) (*Registry, error) {
	if fallback == nil {
		return nil, fmt.Errorf("registro de transmisión sin estrategia de respaldo")
	}
	for i, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("estrategia %d nula", i)
		}
	}
	return &Registry{strategies: strategies, fallback: fallback}, nil
}

// Resolve primera estrategia que soporta la plataforma, o la de respaldo.
func (r *Registry) Resolve(platform string) Strategy {
	for _, s := range r.strategies {
		if s.Supports(platform) {
			return s
		}
	}
	return r.fallback
}

// Names estrategias registradas, en orden, con la de respaldo al final.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.strategies)+1)
	for _, s := range r.strategies {
		out = append(out, s.Name())
	}
	return append(out, r.fallback.Name())
}
