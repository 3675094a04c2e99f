// Package resilience: circuit breaker por plataforma y reintentos con backoff exponencial.
package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
)

// State estado del circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// BreakerConfig umbrales del breaker.
type BreakerConfig struct {
	FailureThreshold    int           // fallos consecutivos en CLOSED para abrir
	ResetTimeout        time.Duration // tiempo en OPEN desde el último fallo antes de pasar a HALF_OPEN
	HalfOpenMaxAttempts int           // peticiones admitidas (y éxitos requeridos) en HALF_OPEN
}

// DefaultBreakerConfig valores por defecto: 5 fallos, 60 s, 3 intentos de prueba.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 60 * time.Second, HalfOpenMaxAttempts: 3}
}

// TransitionFunc se invoca fuera del lock en cada cambio de estado.
type TransitionFunc func(name string, from, to State)

// Snapshot vista inmutable del breaker.
type Snapshot struct {
	Name                 string    `json:"name"`
	State                State     `json:"state"`
	FailureCount         int       `json:"failureCount"`
	LastFailureTime      time.Time `json:"lastFailureTime,omitempty"`
	HalfOpenSuccessCount int       `json:"halfOpenSuccessCount"`
}

// CircuitBreaker máquina de estados CLOSED -> OPEN -> HALF_OPEN -> CLOSED.
// Las transiciones ocurren bajo mu y nunca hacen I/O.
type CircuitBreaker struct {
	name         string
	cfg          BreakerConfig
	clock        clock.Clock
	onTransition TransitionFunc

	mu                   sync.Mutex
	state                State
	failureCount         int
	lastFailureTime      time.Time
	halfOpenAdmitted     int
	halfOpenSuccessCount int
}

// NewCircuitBreaker crea un breaker en CLOSED.
func NewCircuitBreaker(name string, cfg BreakerConfig, clk clock.Clock, onTransition TransitionFunc) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.HalfOpenMaxAttempts < 1 {
		cfg.HalfOpenMaxAttempts = 1
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &CircuitBreaker{name: name, cfg: cfg, clock: clk, onTransition: onTransition, state: StateClosed}
}

// Name clave de la plataforma.
func (b *CircuitBreaker) Name() string { return b.name }

// CanExecute indica si se puede llamar a la plataforma. En HALF_OPEN cada llamada
// admitida consume uno de los HalfOpenMaxAttempts cupos.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	from, to := b.refreshLocked()
	allowed := false
	switch b.state {
	case StateClosed:
		allowed = true
	case StateHalfOpen:
		if b.halfOpenAdmitted < b.cfg.HalfOpenMaxAttempts {
			b.halfOpenAdmitted++
			allowed = true
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
	return allowed
}

// State devuelve el estado actual aplicando la transición OPEN -> HALF_OPEN si venció el timeout.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	from, to := b.refreshLocked()
	s := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return s
}

// RecordSuccess registra una llamada exitosa.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	var from, to State
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.halfOpenSuccessCount++
		if b.halfOpenSuccessCount >= b.cfg.HalfOpenMaxAttempts {
			from, to = b.state, StateClosed
			b.resetLocked()
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
}

// RecordFailure registra un fallo; en HALF_OPEN reabre de inmediato.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	var from, to State
	now := b.clock.Now()
	switch b.state {
	case StateClosed:
		b.failureCount++
		b.lastFailureTime = now
		if b.failureCount >= b.cfg.FailureThreshold {
			from, to = b.state, StateOpen
			b.state = StateOpen
		}
	case StateHalfOpen:
		from, to = b.state, StateOpen
		b.state = StateOpen
		b.failureCount++
		b.lastFailureTime = now
		b.halfOpenAdmitted = 0
		b.halfOpenSuccessCount = 0
	case StateOpen:
		b.lastFailureTime = now
	}
	b.mu.Unlock()
	b.notify(from, to)
}

// Abandon devuelve el cupo de HALF_OPEN de una llamada admitida que terminó sin resultado
// atribuible a la plataforma (cancelada por el llamador, rechazo local).
func (b *CircuitBreaker) Abandon() {
	b.mu.Lock()
	if b.state == StateHalfOpen && b.halfOpenAdmitted > 0 {
		b.halfOpenAdmitted--
	}
	b.mu.Unlock()
}

// Reset fuerza CLOSED y limpia contadores.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.resetLocked()
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

// Snapshot copia el estado para exponerlo (API de administración, métricas).
func (b *CircuitBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	from, to := b.refreshLocked()
	s := Snapshot{
		Name:                 b.name,
		State:                b.state,
		FailureCount:         b.failureCount,
		LastFailureTime:      b.lastFailureTime,
		HalfOpenSuccessCount: b.halfOpenSuccessCount,
	}
	b.mu.Unlock()
	b.notify(from, to)
	return s
}

func (b *CircuitBreaker) refreshLocked() (from, to State) {
	if b.state == StateOpen && b.clock.Now().Sub(b.lastFailureTime) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.halfOpenAdmitted = 0
		b.halfOpenSuccessCount = 0
		return StateOpen, StateHalfOpen
	}
	return "", ""
}

func (b *CircuitBreaker) resetLocked() {
	b.state = StateClosed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.halfOpenAdmitted = 0
	b.halfOpenSuccessCount = 0
}

func (b *CircuitBreaker) notify(from, to State) {
	if to == "" || b.onTransition == nil {
		return
	}
	b.onTransition(b.name, from, to)
}

// ── registro por plataforma ──────────────────────────────────────────────────

// BreakerRegistry crea breakers bajo demanda, uno por clave de plataforma.
type BreakerRegistry struct {
	cfg          BreakerConfig
	clock        clock.Clock
	onTransition TransitionFunc

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry construye un registro vacío; clk y onTransition son opcionales.
func NewBreakerRegistry(cfg BreakerConfig, clk clock.Clock, onTransition TransitionFunc) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, clock: clk, onTransition: onTransition, breakers: make(map[string]*CircuitBreaker)}
}

// Get devuelve (o crea en CLOSED) el breaker de la clave.
func (r *BreakerRegistry) Get(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = NewCircuitBreaker(key, r.cfg, r.clock, r.onTransition)
		r.breakers[key] = b
	}
	return b
}

// Reset vuelve a CLOSED el breaker de la clave; false si nunca se creó.
func (r *BreakerRegistry) Reset(key string) bool {
	r.mu.Lock()
	b, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}

// Snapshots estado de todos los breakers ordenado por nombre.
func (r *BreakerRegistry) Snapshots() []Snapshot {
	r.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
