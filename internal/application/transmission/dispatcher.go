package transmission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

// Config parámetros de resiliencia del dispatcher.
type Config struct {
	Breaker           resilience.BreakerConfig
	Retry             resilience.RetryPolicy
	StatusMaxAttempts int           // presupuesto reducido de las consultas de estado
	CallTimeout       time.Duration // timeout de cada intento, distinto del presupuesto de reintentos
	RatePerSecond     float64       // 0 = sin límite
}

// DefaultConfig 5 fallos / 60 s / 3 en prueba; 3 intentos; 2 para estado; 30 s por intento.
func DefaultConfig() Config {
	return Config{
		Breaker:           resilience.DefaultBreakerConfig(),
		Retry:             resilience.DefaultRetryPolicy(),
		StatusMaxAttempts: 2,
		CallTimeout:       30 * time.Second,
	}
}

// Dispatcher punto único de salida hacia las plataformas.
type Dispatcher struct {
	registry    *Registry
	breakers    *resilience.BreakerRegistry
	retry       resilience.RetryPolicy
	statusRetry resilience.RetryPolicy
	callTimeout time.Duration
	rps         float64
	clock       clock.Clock
	metrics     ports.Metrics
	log         zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher construye el dispatcher con su propio registro de breakers.
func NewDispatcher(registry *Registry, cfg Config, clk clock.Clock, metrics ports.Metrics, log zerolog.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.System{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.StatusMaxAttempts < 1 {
		cfg.StatusMaxAttempts = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	d := &Dispatcher{
		registry:    registry,
		callTimeout: cfg.CallTimeout,
		rps:         cfg.RatePerSecond,
		clock:       clk,
		metrics:     metrics,
		log:         log,
		limiters:    make(map[string]*rate.Limiter),
	}
	d.retry = cfg.Retry
	d.retry.Retryable = retryable
	d.statusRetry = d.retry.WithMaxAttempts(cfg.StatusMaxAttempts)
	d.breakers = resilience.NewBreakerRegistry(cfg.Breaker, clk, d.onTransition)
	return d
}

func (d *Dispatcher) onTransition(platform string, from, to resilience.State) {
	d.metrics.BreakerTransition(platform, string(from), string(to))
	ev := d.log.Info()
	if to == resilience.StateOpen {
		ev = d.log.Warn()
	}
	ev.Str("platform", platform).Str("from", string(from)).Str("to", string(to)).Msg("circuit breaker cambia de estado")
}

// transientResult respuesta de la plataforma con firma transitoria ("503", "timeout"...):
// se reintenta como si fuera un error de red.
type transientResult struct {
	result *entity.TransmissionResult
}

func (e *transientResult) Error() string {
	return fmt.Sprintf("%s: %s", e.result.ErrorCode, e.result.Message)
}

func retryable(err error) bool {
	var tr *transientResult
	if errors.As(err, &tr) {
		return true
	}
	return resilience.IsTransient(err)
}

// IsValidationCode códigos de validación: nunca se reintentan.
func IsValidationCode(code string) bool {
	return strings.Contains(strings.ToUpper(code), "VALIDATION")
}

func (d *Dispatcher) limiter(platform string) *rate.Limiter {
	if d.rps <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[platform]
	if !ok {
		burst := int(d.rps)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(d.rps), burst)
		d.limiters[platform] = l
	}
	return l
}

// attempt ejecuta una llamada con limitador y timeout propios.
func attempt[T any](d *Dispatcher, ctx context.Context, platform string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if l := d.limiter(platform); l != nil {
		if err := l.Wait(ctx); err != nil {
			return zero, err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return call(callCtx)
}

func platformKey(platform string) string {
	if platform == "" {
		return "email"
	}
	return platform
}

// ── envío ────────────────────────────────────────────────────────────────────

// Send envía el documento. Nunca devuelve error: todos los modos de fallo se traducen a
// TransmissionResult con Success, Status y ErrorCode.
func (d *Dispatcher) Send(ctx context.Context, payload *entity.TransmissionPayload) entity.TransmissionResult {
	platform := platformKey(payload.Platform)
	strategy := d.registry.Resolve(platform)
	breaker := d.breakers.Get(platform)
	logger := d.log.With().Str("platform", platform).Str("strategy", strategy.Name()).Str("invoice", payload.InvoiceID).Logger()

	if !breaker.CanExecute() {
		res := entity.TransmissionResult{
			Success:     false,
			Status:      entity.StatusFailed,
			Platform:    platform,
			ErrorCode:   entity.ErrorCodeCircuitOpen,
			Message:     "plataforma no disponible: circuito abierto",
			SubmittedAt: d.clock.Now(),
		}
		d.metrics.TransmissionOutcome(platform, "send", string(res.Status), res.ErrorCode, 0)
		logger.Warn().Msg("envío rechazado por circuito abierto")
		return res
	}

	out, attempts, err := resilience.Do(ctx, d.retry, func(ctx context.Context) (*entity.TransmissionResult, error) {
		r, err := attempt(d, ctx, platform, func(callCtx context.Context) (*entity.TransmissionResult, error) {
			return strategy.Send(callCtx, payload)
		})
		if err != nil {
			logger.Debug().Err(err).Msg("intento de envío fallido")
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("estrategia %s devolvió un resultado vacío", strategy.Name())
		}
		// un rechazo es definitivo aunque su mensaje hable de red o de timeout
		if !r.Success && r.Status == entity.StatusFailed && resilience.IsTransientCode(r.ErrorCode) {
			logger.Debug().Str("error_code", r.ErrorCode).Msg("respuesta transitoria de la plataforma")
			return nil, &transientResult{result: r}
		}
		return r, nil
	})

	res := d.sendOutcome(ctx, breaker, platform, out, attempts, err)
	d.metrics.TransmissionOutcome(platform, "send", string(res.Status), res.ErrorCode, res.Attempts)
	ev := logger.Info()
	if !res.Success {
		ev = logger.Warn()
	}
	ev.Str("status", string(res.Status)).Str("error_code", res.ErrorCode).Int("attempts", res.Attempts).Msg("transmisión finalizada")
	return res
}

func (d *Dispatcher) sendOutcome(ctx context.Context, breaker *resilience.CircuitBreaker, platform string, out *entity.TransmissionResult, attempts int, err error) entity.TransmissionResult {
	now := d.clock.Now()
	if err == nil {
		breaker.RecordSuccess()
		res := *out
		res.Attempts = attempts
		if res.Platform == "" {
			res.Platform = platform
		}
		if res.Status == "" {
			res.Status = entity.StatusSubmitted
			if !res.Success {
				res.Status = entity.StatusRejected
			}
		}
		if res.SubmittedAt.IsZero() {
			res.SubmittedAt = now
		}
		return res
	}

	res := entity.TransmissionResult{
		Success:     false,
		Status:      entity.StatusFailed,
		Platform:    platform,
		ErrorCode:   entity.ErrorCodeTransmission,
		Message:     err.Error(),
		Attempts:    attempts,
		SubmittedAt: now,
	}
	var ve *resilience.ValidationError
	switch {
	case ctx.Err() != nil:
		breaker.Abandon()
		res.Message = "envío cancelado por el llamador: " + ctx.Err().Error()
	case errors.As(err, &ve):
		breaker.Abandon()
		res.Status = entity.StatusRejected
		res.ErrorCode = entity.ErrorCodeValidation
		res.Message = ve.Reason
	case errors.Is(err, resilience.ErrRetryExhausted):
		breaker.RecordFailure()
		res.ErrorCode = entity.ErrorCodeRetryExhausted
		var tr *transientResult
		if errors.As(err, &tr) && tr.result.Message != "" {
			res.Message = fmt.Sprintf("reintentos agotados tras %d intentos: %s", attempts, tr.result.Message)
		}
	default:
		breaker.RecordFailure()
	}
	return res
}

// ── estado y anulación ───────────────────────────────────────────────────────

// CheckStatus consulta el estado con el presupuesto reducido de reintentos.
func (d *Dispatcher) CheckStatus(ctx context.Context, ref entity.TransmissionRef) entity.StatusResult {
	platform := platformKey(ref.Platform)
	strategy := d.registry.Resolve(platform)
	breaker := d.breakers.Get(platform)

	if !breaker.CanExecute() {
		d.metrics.TransmissionOutcome(platform, "status", string(entity.StatusFailed), entity.ErrorCodeCircuitOpen, 0)
		return entity.StatusResult{
			Status:     entity.StatusFailed,
			ExternalID: ref.ExternalID,
			ErrorCode:  entity.ErrorCodeCircuitOpen,
			Message:    "plataforma no disponible: circuito abierto",
		}
	}

	out, attempts, err := resilience.Do(ctx, d.statusRetry, func(ctx context.Context) (*entity.StatusResult, error) {
		return attempt(d, ctx, platform, func(callCtx context.Context) (*entity.StatusResult, error) {
			return strategy.CheckStatus(callCtx, ref)
		})
	})

	var res entity.StatusResult
	switch {
	case err == nil && out != nil:
		breaker.RecordSuccess()
		res = *out
		if res.ExternalID == "" {
			res.ExternalID = ref.ExternalID
		}
	case errors.Is(err, ErrUnsupported):
		breaker.Abandon()
		res = entity.StatusResult{Status: entity.StatusFailed, ExternalID: ref.ExternalID, ErrorCode: entity.ErrorCodeUnsupported, Message: err.Error()}
	case ctx.Err() != nil:
		breaker.Abandon()
		res = entity.StatusResult{Status: entity.StatusFailed, ExternalID: ref.ExternalID, ErrorCode: entity.ErrorCodeTransmission, Message: ctx.Err().Error()}
	default:
		breaker.RecordFailure()
		code := entity.ErrorCodeTransmission
		if errors.Is(err, resilience.ErrRetryExhausted) {
			code = entity.ErrorCodeRetryExhausted
		}
		msg := "resultado vacío"
		if err != nil {
			msg = err.Error()
		}
		res = entity.StatusResult{Status: entity.StatusFailed, ExternalID: ref.ExternalID, ErrorCode: code, Message: msg}
	}
	res.Attempts = attempts
	d.metrics.TransmissionOutcome(platform, "status", string(res.Status), res.ErrorCode, attempts)
	return res
}

// Cancel anula una transmisión con un único intento: la doble anulación no es idempotente
// en todas las plataformas. Con el circuito abierto se rechaza sin llamar.
func (d *Dispatcher) Cancel(ctx context.Context, ref entity.TransmissionRef) entity.CancelResult {
	platform := platformKey(ref.Platform)
	strategy := d.registry.Resolve(platform)
	breaker := d.breakers.Get(platform)
	logger := d.log.With().Str("platform", platform).Str("external_id", ref.ExternalID).Logger()

	if !breaker.CanExecute() {
		d.metrics.TransmissionOutcome(platform, "cancel", string(entity.StatusFailed), entity.ErrorCodeCircuitOpen, 0)
		logger.Warn().Msg("anulación rechazada por circuito abierto")
		return entity.CancelResult{ExternalID: ref.ExternalID, ErrorCode: entity.ErrorCodeCircuitOpen, Message: "plataforma no disponible: circuito abierto"}
	}

	ok, err := attempt(d, ctx, platform, func(callCtx context.Context) (bool, error) {
		return strategy.Cancel(callCtx, ref)
	})

	res := entity.CancelResult{Success: ok && err == nil, ExternalID: ref.ExternalID}
	switch {
	case err == nil:
		breaker.RecordSuccess()
		if !ok {
			res.ErrorCode = entity.ErrorCodePlatformRejects
			res.Message = "la plataforma rechazó la anulación"
		}
	case errors.Is(err, ErrUnsupported):
		breaker.Abandon()
		res.ErrorCode = entity.ErrorCodeUnsupported
		res.Message = err.Error()
	case ctx.Err() != nil:
		breaker.Abandon()
		res.ErrorCode = entity.ErrorCodeTransmission
		res.Message = ctx.Err().Error()
	default:
		breaker.RecordFailure()
		res.ErrorCode = entity.ErrorCodeTransmission
		res.Message = err.Error()
	}
	status := "cancelled"
	if !res.Success {
		status = string(entity.StatusFailed)
	}
	d.metrics.TransmissionOutcome(platform, "cancel", status, res.ErrorCode, 1)
	logger.Info().Bool("success", res.Success).Str("error_code", res.ErrorCode).Msg("anulación finalizada")
	return res
}

// ── administración ───────────────────────────────────────────────────────────

// Breakers estado de los breakers creados.
func (d *Dispatcher) Breakers() []resilience.Snapshot {
	return d.breakers.Snapshots()
}

// ResetBreaker fuerza CLOSED; false si la plataforma nunca se usó.
func (d *Dispatcher) ResetBreaker(platform string) bool {
	ok := d.breakers.Reset(platform)
	if ok {
		d.log.Info().Str("platform", platform).Msg("circuit breaker reiniciado manualmente")
	}
	return ok
}

// Platforms estrategias registradas.
func (d *Dispatcher) Platforms() []string {
	return d.registry.Names()
}
