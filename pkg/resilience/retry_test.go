package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

func fastPolicy(attempts int) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Jitter:       func() float64 { return 0 },
	}
}

func TestDo_ExitoEnUltimoIntento(t *testing.T) {
	calls := 0
	v, attempts, err := resilience.Do(context.Background(), fastPolicy(4), func(context.Context) (string, error) {
		calls++
		if calls < 4 {
			return "", errors.New("read: connection reset by peer")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 4, attempts, "debe reportar maxAttempts intentos")
}

func TestDo_ErrorNoReintentableCortaEnPrimerIntento(t *testing.T) {
	calls := 0
	_, attempts, err := resilience.Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("xml mal formado")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, resilience.ErrRetryExhausted)
}

func TestDo_ValidacionNuncaSeReintenta(t *testing.T) {
	_, attempts, err := resilience.Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		return 0, &resilience.ValidationError{Reason: "falta UUID (timeout en otra parte)"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_AgotaReintentos(t *testing.T) {
	_, attempts, err := resilience.Do(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		return 0, &resilience.StatusError{StatusCode: 503, Body: "mantenimiento"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, resilience.ErrRetryExhausted)

	var serr *resilience.StatusError
	assert.ErrorAs(t, err, &serr, "el último error sigue accesible")
}

func TestDo_UnSoloIntento(t *testing.T) {
	_, attempts, err := resilience.Do(context.Background(), fastPolicy(1), func(context.Context) (int, error) {
		return 0, errors.New("network unreachable")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, resilience.ErrRetryExhausted)
}

func TestDo_ContextoCanceladoDuranteEspera(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy(5)
	p.InitialDelay = time.Hour
	p.MaxDelay = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, attempts, err := resilience.Do(ctx, p, func(context.Context) (int, error) {
		return 0, errors.New("503 service unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Minute, "la espera es cancelable")
}

func TestDelay_ExponencialConTopeYJitter(t *testing.T) {
	p := resilience.RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: func() float64 { return 0 }}
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10), "acotado a MaxDelay")

	p.Jitter = func() float64 { return 1 }
	assert.Equal(t, 125*time.Millisecond, p.Delay(1), "jitter máximo del 25 %")
	assert.Equal(t, 1250*time.Millisecond, p.Delay(10))
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("ETIMEDOUT"), true},
		{&net.DNSError{Err: "no such host", Name: "api.sdi.test"}, true},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("envío: %w", &resilience.StatusError{StatusCode: 429}), true},
		{&resilience.StatusError{StatusCode: 504}, true},
		{&resilience.StatusError{StatusCode: 400}, false},
		{&resilience.StatusError{StatusCode: 500}, false},
		{errors.New("service unavailable"), true},
		{errors.New("VALIDATION_ERROR: network field missing"), false},
		{context.Canceled, false},
		{errors.New("certificado inválido"), false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, resilience.IsTransient(c.err), "%v", c.err)
	}
}

func TestIsTransientCode(t *testing.T) {
	assert.True(t, resilience.IsTransientCode(resilience.CodeUnavailable))
	assert.True(t, resilience.IsTransientCode("http_503"))
	assert.True(t, resilience.IsTransientCode(resilience.CodeTimeout))
	assert.False(t, resilience.IsTransientCode("PLATFORM_REJECTED"))
	assert.False(t, resilience.IsTransientCode("network unavailable"), "el mensaje libre no clasifica")
	assert.False(t, resilience.IsTransientCode(""))
}
