package email_test

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/email"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func recorder(out *sent, err error) email.SendFunc {
	return func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*out = sent{addr: addr, from: from, to: to, msg: string(msg)}
		return err
	}
}

func smtpConfig() config.SMTPConfig {
	return config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "facturas@example.com"}
}

func payload() *entity.TransmissionPayload {
	return &entity.TransmissionPayload{
		InvoiceNumber: "2026-00001",
		Platform:      "email",
		XML:           []byte("<Invoice/>"),
		PDF:           []byte("%PDF-1.7"),
		Sender:        entity.Party{Name: "ACME", TaxID: "FR12345678901"},
		Recipient:     entity.Party{Email: "cliente@example.com"},
	}
}

func TestSend_Entregado(t *testing.T) {
	var got sent
	s := email.NewStrategy(smtpConfig(), recorder(&got, nil), nil, zerolog.Nop())

	res, err := s.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, entity.StatusDelivered, res.Status)
	assert.NotEmpty(t, res.ExternalID)
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, []string{"cliente@example.com"}, got.to)
	assert.Contains(t, got.msg, `filename=2026-00001.xml`)
	assert.Contains(t, got.msg, `filename=2026-00001.pdf`)
	assert.Contains(t, got.msg, "multipart/mixed")
}

func TestSend_SinSMTP(t *testing.T) {
	var got sent
	s := email.NewStrategy(config.SMTPConfig{}, recorder(&got, nil), nil, zerolog.Nop())

	res, err := s.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.Equal(t, entity.ErrorCodeNotConfigured, res.ErrorCode)
	assert.Empty(t, got.addr)
}

func TestSend_SinDestinatario(t *testing.T) {
	s := email.NewStrategy(smtpConfig(), recorder(&sent{}, nil), nil, zerolog.Nop())
	p := payload()
	p.Recipient.Email = ""

	_, err := s.Send(context.Background(), p)

	var ve *resilience.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSend_ErrorSMTP(t *testing.T) {
	s := email.NewStrategy(smtpConfig(), recorder(&sent{}, errors.New("421 service unavailable")), nil, zerolog.Nop())
	_, err := s.Send(context.Background(), payload())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestEstadoYAnulacionNoSoportados(t *testing.T) {
	s := email.NewStrategy(smtpConfig(), nil, nil, zerolog.Nop())
	_, err := s.CheckStatus(context.Background(), entity.TransmissionRef{})
	assert.ErrorIs(t, err, transmission.ErrUnsupported)
	_, err = s.Cancel(context.Background(), entity.TransmissionRef{})
	assert.ErrorIs(t, err, transmission.ErrUnsupported)
}
