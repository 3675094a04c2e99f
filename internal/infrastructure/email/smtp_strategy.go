// Package email canal de respaldo: entrega el documento como adjunto por SMTP.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

// PlatformName plataforma de respaldo.
const PlatformName = "email"

// SendFunc firma de smtp.SendMail; se sustituye en tests.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var _ transmission.Strategy = (*Strategy)(nil)

// Strategy envío fire-and-forget: no hay consulta de estado ni anulación.
type Strategy struct {
	cfg   config.SMTPConfig
	send  SendFunc
	clock clock.Clock
	log   zerolog.Logger
}

// NewStrategy send nil usa smtp.SendMail.
func NewStrategy(cfg config.SMTPConfig, send SendFunc, clk clock.Clock, log zerolog.Logger) *Strategy {
	if send == nil {
		send = smtp.SendMail
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Strategy{cfg: cfg, send: send, clock: clk, log: log}
}

func (s *Strategy) Name() string { return PlatformName }

func (s *Strategy) Supports(platform string) bool { return platform == PlatformName }

func (s *Strategy) Send(ctx context.Context, p *entity.TransmissionPayload) (*entity.TransmissionResult, error) {
	now := s.clock.Now()
	if s.cfg.Host == "" || s.cfg.From == "" {
		return &entity.TransmissionResult{
			Status:      entity.StatusFailed,
			Platform:    PlatformName,
			ErrorCode:   entity.ErrorCodeNotConfigured,
			Message:     "SMTP sin configurar",
			SubmittedAt: now,
		}, nil
	}
	if p.Recipient.Email == "" {
		return nil, &resilience.ValidationError{Reason: "el destinatario no tiene email"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	msg, err := buildMessage(s.cfg.From, p, messageID)
	if err != nil {
		return nil, err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{p.Recipient.Email}, msg); err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}

	s.log.Info().Str("invoice", p.InvoiceNumber).Str("to", p.Recipient.Email).Msg("documento enviado por email")
	return &entity.TransmissionResult{
		Success:     true,
		Status:      entity.StatusDelivered,
		Platform:    PlatformName,
		ExternalID:  messageID,
		SubmittedAt: now,
	}, nil
}

func (s *Strategy) CheckStatus(context.Context, entity.TransmissionRef) (*entity.StatusResult, error) {
	return nil, fmt.Errorf("email: %w", transmission.ErrUnsupported)
}

func (s *Strategy) Cancel(context.Context, entity.TransmissionRef) (bool, error) {
	return false, fmt.Errorf("email: %w", transmission.ErrUnsupported)
}

// buildMessage MIME multipart con el XML y el PDF adjuntos.
func buildMessage(from string, p *entity.TransmissionPayload, messageID string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Documento %s emitido por %s (%s).\r\n", p.InvoiceNumber, p.Sender.Name, p.Sender.TaxID)

	attach := func(name, contentType string, data []byte) error {
		if len(data) == 0 {
			return nil
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return err
		}
		enc := base64.StdEncoding.EncodeToString(data)
		for len(enc) > 76 {
			fmt.Fprintf(part, "%s\r\n", enc[:76])
			enc = enc[76:]
		}
		_, err = fmt.Fprintf(part, "%s\r\n", enc)
		return err
	}
	base := strings.NewReplacer("/", "-", " ", "_").Replace(p.InvoiceNumber)
	if err := attach(base+".xml", "application/xml", p.XML); err != nil {
		return nil, fmt.Errorf("email: adjuntar XML: %w", err)
	}
	if err := attach(base+".pdf", "application/pdf", p.PDF); err != nil {
		return nil, fmt.Errorf("email: adjuntar PDF: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", p.Recipient.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", "Factura "+p.InvoiceNumber))
	fmt.Fprintf(&msg, "Message-ID: <%s@%s>\r\n", messageID, PlatformName)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
