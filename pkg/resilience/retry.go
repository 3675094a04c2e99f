package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRetryExhausted se envuelve junto al último error cuando se agotan los intentos.
var ErrRetryExhausted = errors.New("reintentos agotados")

// RetryPolicy política de reintentos. Retryable nil = IsTransient; Jitter nil = aleatorio en [0,1).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Retryable    func(error) bool
	Jitter       func() float64
}

// DefaultRetryPolicy 3 intentos, 1 s inicial, x2, tope 30 s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
}

// WithMaxAttempts copia la política con otro número de intentos (consultas de estado).
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	p.MaxAttempts = n
	return p
}

// Delay espera antes del reintento número attempt (1 = tras el primer fallo):
// initialDelay × multiplier^(attempt-1) acotado a maxDelay, más 0–25 % de jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	j := p.jitter()
	if j < 0 {
		j = 0
	}
	if j > 1 {
		j = 1
	}
	return time.Duration(d + d*0.25*j)
}

func (p RetryPolicy) jitter() float64 {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return rand.Float64()
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTransient(err)
}

// jitteredBackOff adapta RetryPolicy a backoff.BackOff.
type jitteredBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *jitteredBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.policy.Delay(b.attempt)
}

func (b *jitteredBackOff) Reset() { b.attempt = 0 }

// Do ejecuta op hasta MaxAttempts veces. Solo reintenta errores clasificados como
// transitorios; el resto corta en el primer intento. Devuelve el número de intentos
// realizados. Las esperas respetan ctx (no bloquean otras operaciones).
func Do[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result   T
		attempts int
		lastErr  error
	)
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if maxAttempts > 1 {
		policy = backoff.WithMaxRetries(&jitteredBackOff{policy: p}, uint64(maxAttempts-1))
	}
	b := backoff.WithContext(policy, ctx)
	err := backoff.Retry(func() error {
		attempts++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)

	if err == nil {
		return result, attempts, nil
	}
	if lastErr != nil && attempts >= maxAttempts && p.retryable(lastErr) {
		return result, attempts, fmt.Errorf("%w tras %d intentos: %w", ErrRetryExhausted, attempts, lastErr)
	}
	return result, attempts, err
}
