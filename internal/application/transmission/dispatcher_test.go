package transmission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

type strategyMock struct {
	mock.Mock
	name      string
	platforms []string
}

func (m *strategyMock) Name() string { return m.name }

func (m *strategyMock) Supports(platform string) bool {
	for _, p := range m.platforms {
		if p == platform {
			return true
		}
	}
	return false
}

func (m *strategyMock) Send(ctx context.Context, p *entity.TransmissionPayload) (*entity.TransmissionResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*entity.TransmissionResult)
	return res, args.Error(1)
}

func (m *strategyMock) CheckStatus(ctx context.Context, ref entity.TransmissionRef) (*entity.StatusResult, error) {
	args := m.Called(ctx, ref)
	res, _ := args.Get(0).(*entity.StatusResult)
	return res, args.Error(1)
}

func (m *strategyMock) Cancel(ctx context.Context, ref entity.TransmissionRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

type metricsSpy struct {
	outcomes    []string
	transitions []string
}

func (s *metricsSpy) TransmissionOutcome(platform, op, status, code string, _ int) {
	s.outcomes = append(s.outcomes, platform+"/"+op+"/"+status+"/"+code)
}
func (s *metricsSpy) BreakerTransition(platform, from, to string) {
	s.transitions = append(s.transitions, platform+":"+from+"->"+to)
}
func (s *metricsSpy) NumberIssued(string, string) {}
func (s *metricsSpy) TaxIDValidation(string)      {}

func testConfig() transmission.Config {
	return transmission.Config{
		Breaker: resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute, HalfOpenMaxAttempts: 1},
		Retry: resilience.RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
			Jitter:       func() float64 { return 0 },
		},
		StatusMaxAttempts: 2,
		CallTimeout:       time.Second,
	}
}

type fixture struct {
	dispatcher *transmission.Dispatcher
	platform   *strategyMock
	email      *strategyMock
	clock      *clock.Fake
	metrics    *metricsSpy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	platform := &strategyMock{name: "pdp", platforms: []string{"superpdp"}}
	email := &strategyMock{name: "email", platforms: []string{"email"}}
	reg, err := transmission.NewRegistry(email, platform)
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	spy := &metricsSpy{}
	return &fixture{
		dispatcher: transmission.NewDispatcher(reg, testConfig(), clk, spy, zerolog.Nop()),
		platform:   platform,
		email:      email,
		clock:      clk,
		metrics:    spy,
	}
}

func payload(platform string) *entity.TransmissionPayload {
	return &entity.TransmissionPayload{InvoiceID: "inv-1", InvoiceNumber: "2026-00001", Platform: platform}
}

func breakerState(d *transmission.Dispatcher, name string) resilience.State {
	for _, s := range d.Breakers() {
		if s.Name == name {
			return s.State
		}
	}
	return ""
}

// ── registro ─────────────────────────────────────────────────────────────────

func TestRegistry_SinRespaldoFalla(t *testing.T) {
	_, err := transmission.NewRegistry(nil)
	assert.Error(t, err)
}

func TestRegistry_ResuelvePlataformaODelegaEnRespaldo(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"pdp", "email"}, f.dispatcher.Platforms())

	f.email.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: true, Status: entity.StatusDelivered}, nil).Once()

	res := f.dispatcher.Send(context.Background(), payload("desconocida"))
	assert.True(t, res.Success)
	assert.Equal(t, entity.StatusDelivered, res.Status)
	assert.Equal(t, "desconocida", res.Platform)
	f.email.AssertExpectations(t)
	f.platform.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

// ── envío ────────────────────────────────────────────────────────────────────

func TestSend_ExitoAlPrimerIntento(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: true, Status: entity.StatusSubmitted, ExternalID: "ext-1"}, nil).Once()

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "ext-1", res.ExternalID)
	assert.Equal(t, f.clock.Now(), res.SubmittedAt, "sin fecha de la plataforma se usa el reloj")
	assert.Equal(t, []string{"superpdp/send/submitted/"}, f.metrics.outcomes)
}

func TestSend_ReintentaErroresTransitorios(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(nil, &resilience.StatusError{StatusCode: 503, Body: "busy"}).Twice()
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: true, Status: entity.StatusAccepted}, nil).Once()

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, resilience.StateClosed, breakerState(f.dispatcher, "superpdp"))
	f.platform.AssertNumberOfCalls(t, "Send", 3)
}

func TestSend_ResultadoTransitorioSeReintentaHastaAgotar(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: false, Status: entity.StatusFailed, ErrorCode: "HTTP_503", Message: "service unavailable"}, nil)

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.False(t, res.Success)
	assert.Equal(t, entity.ErrorCodeRetryExhausted, res.ErrorCode)
	assert.Equal(t, 3, res.Attempts)
	assert.Contains(t, res.Message, "service unavailable")
}

func TestSend_ErrorPermanenteNoSeReintenta(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(nil, &resilience.StatusError{StatusCode: 400, Body: "bad request"}).Once()

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.False(t, res.Success)
	assert.Equal(t, entity.ErrorCodeTransmission, res.ErrorCode)
	assert.Equal(t, 1, res.Attempts)
}

func TestSend_RechazoDefinitivoConMensajeDeRedNoSeReintenta(t *testing.T) {
	f := newFixture(t)
	rejected := &entity.TransmissionResult{
		Success:   false,
		Status:    entity.StatusRejected,
		ErrorCode: entity.ErrorCodePlatformRejects,
		Message:   "recipient is not registered on the Peppol network",
	}
	f.platform.On("Send", mock.Anything, mock.Anything).Return(rejected, nil)

	for i := 0; i < 3; i++ {
		res := f.dispatcher.Send(context.Background(), payload("superpdp"))

		assert.False(t, res.Success)
		assert.Equal(t, entity.StatusRejected, res.Status)
		assert.Equal(t, entity.ErrorCodePlatformRejects, res.ErrorCode)
		assert.Equal(t, 1, res.Attempts)
	}
	f.platform.AssertNumberOfCalls(t, "Send", 3)
	assert.Equal(t, resilience.StateClosed, breakerState(f.dispatcher, "superpdp"), "un rechazo es una respuesta, no un fallo")
}

func TestSend_FalloConCodigoNoTransitorioNoSeReintenta(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: false, Status: entity.StatusFailed, ErrorCode: "AUTH_ERROR", Message: "token endpoint timeout"}, nil).Once()

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.Equal(t, "AUTH_ERROR", res.ErrorCode)
	assert.Equal(t, 1, res.Attempts)
	f.platform.AssertNumberOfCalls(t, "Send", 1)
}

func TestSend_RechazoDeValidacionNoSeReintentaNiAbreCircuito(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: false, Status: entity.StatusRejected, ErrorCode: "VALIDATION_503", Message: "timeout en campo"}, nil)

	for i := 0; i < 3; i++ {
		res := f.dispatcher.Send(context.Background(), payload("superpdp"))
		assert.Equal(t, entity.StatusRejected, res.Status)
		assert.Equal(t, 1, res.Attempts, "las validaciones nunca se reintentan")
	}
	assert.Equal(t, resilience.StateClosed, breakerState(f.dispatcher, "superpdp"))
}

func TestSend_ErrorDeValidacionLocal(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(nil, &resilience.ValidationError{Reason: "XML vacío"}).Once()

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.Equal(t, entity.StatusRejected, res.Status)
	assert.Equal(t, entity.ErrorCodeValidation, res.ErrorCode)
	assert.Equal(t, "XML vacío", res.Message)
}

// ── circuit breaker ──────────────────────────────────────────────────────────

func TestSend_CircuitoAbiertoRechazaSinLlamar(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	f.dispatcher.Send(context.Background(), payload("superpdp"))
	f.dispatcher.Send(context.Background(), payload("superpdp"))
	require.Equal(t, resilience.StateOpen, breakerState(f.dispatcher, "superpdp"))
	calls := len(f.platform.Calls)

	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.Equal(t, entity.ErrorCodeCircuitOpen, res.ErrorCode)
	assert.Equal(t, 0, res.Attempts)
	assert.Len(t, f.platform.Calls, calls, "con el circuito abierto no se llama a la plataforma")
	assert.Contains(t, f.metrics.transitions, "superpdp:CLOSED->OPEN")
}

func TestSend_CircuitoSeRecuperaTrasResetTimeout(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Times(6)
	f.platform.On("Send", mock.Anything, mock.Anything).
		Return(&entity.TransmissionResult{Success: true, Status: entity.StatusSubmitted}, nil)

	f.dispatcher.Send(context.Background(), payload("superpdp"))
	f.dispatcher.Send(context.Background(), payload("superpdp"))
	require.Equal(t, resilience.StateOpen, breakerState(f.dispatcher, "superpdp"))

	f.clock.Advance(61 * time.Second)
	res := f.dispatcher.Send(context.Background(), payload("superpdp"))

	assert.True(t, res.Success)
	assert.Equal(t, resilience.StateClosed, breakerState(f.dispatcher, "superpdp"))
}

func TestResetBreaker(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.dispatcher.ResetBreaker("superpdp"), "breaker inexistente")

	f.platform.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	f.dispatcher.Send(context.Background(), payload("superpdp"))
	f.dispatcher.Send(context.Background(), payload("superpdp"))
	require.Equal(t, resilience.StateOpen, breakerState(f.dispatcher, "superpdp"))

	assert.True(t, f.dispatcher.ResetBreaker("superpdp"))
	assert.Equal(t, resilience.StateClosed, breakerState(f.dispatcher, "superpdp"))
}

func TestSend_CancelacionDelLlamadorNoCuentaComoFallo(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.platform.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	res := f.dispatcher.Send(ctx, payload("superpdp"))

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	snap := f.dispatcher.Breakers()
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].FailureCount)
}

// ── estado y anulación ───────────────────────────────────────────────────────

func TestCheckStatus_PresupuestoReducido(t *testing.T) {
	f := newFixture(t)
	f.platform.On("CheckStatus", mock.Anything, mock.Anything).Return(nil, errors.New("ETIMEDOUT"))

	res := f.dispatcher.CheckStatus(context.Background(), entity.TransmissionRef{Platform: "superpdp", ExternalID: "ext-1"})

	assert.Equal(t, entity.StatusFailed, res.Status)
	assert.Equal(t, entity.ErrorCodeRetryExhausted, res.ErrorCode)
	assert.Equal(t, 2, res.Attempts)
	f.platform.AssertNumberOfCalls(t, "CheckStatus", 2)
}

func TestCheckStatus_NoSoportado(t *testing.T) {
	f := newFixture(t)
	f.email.On("CheckStatus", mock.Anything, mock.Anything).Return(nil, transmission.ErrUnsupported)

	res := f.dispatcher.CheckStatus(context.Background(), entity.TransmissionRef{Platform: "email", ExternalID: "m-1"})

	assert.Equal(t, entity.ErrorCodeUnsupported, res.ErrorCode)
	assert.Equal(t, "m-1", res.ExternalID)
}

func TestCancel_UnSoloIntento(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Cancel", mock.Anything, mock.Anything).Return(false, errors.New("503 unavailable")).Once()

	res := f.dispatcher.Cancel(context.Background(), entity.TransmissionRef{Platform: "superpdp", ExternalID: "ext-1"})

	assert.False(t, res.Success)
	assert.Equal(t, entity.ErrorCodeTransmission, res.ErrorCode)
	f.platform.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestCancel_Exito(t *testing.T) {
	f := newFixture(t)
	f.platform.On("Cancel", mock.Anything, mock.Anything).Return(true, nil).Once()

	res := f.dispatcher.Cancel(context.Background(), entity.TransmissionRef{Platform: "superpdp", ExternalID: "ext-1"})

	assert.True(t, res.Success)
	assert.Empty(t, res.ErrorCode)
}
