// Package dian estrategia de transmisión para la DIAN (Colombia): validación estructural,
// empaquetado ZIP y WS SOAP SendBillAsync / SendTestSetAsync / GetStatusZip.
package dian

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

// PlatformName clave de plataforma en la tabla de países.
const PlatformName = "dian"

// Códigos de la DIAN.
const (
	statusCodeProcessing = "98" // documento en procesamiento
	errorCodeSOAPFault   = "SOAP_FAULT"
)

var _ transmission.Strategy = (*Strategy)(nil)

// Strategy implementa transmission.Strategy para la DIAN.
type Strategy struct {
	env       string
	submitter Submitter
	clock     clock.Clock
	log       zerolog.Logger
}

// NewStrategy con env "dev" no se llama al WS: el envío se simula y se registra en log.
func NewStrategy(env string, submitter Submitter, clk clock.Clock, log zerolog.Logger) *Strategy {
	if clk == nil {
		clk = clock.System{}
	}
	return &Strategy{env: env, submitter: submitter, clock: clk, log: log}
}

func (s *Strategy) Name() string { return PlatformName }

func (s *Strategy) Supports(platform string) bool { return platform == PlatformName }

func (s *Strategy) Send(ctx context.Context, p *entity.TransmissionPayload) (*entity.TransmissionResult, error) {
	if err := ValidateDocument(p.XML); err != nil {
		return nil, err
	}
	xmlName, zipName := Filenames(p.Sender.TaxID, p.InvoiceNumber)
	zipBytes, err := CompressXMLToZip(p.XML, xmlName)
	if err != nil {
		return nil, fmt.Errorf("dian: empaquetar: %w", err)
	}

	now := s.clock.Now()
	if s.env == AppEnvDev || s.submitter == nil {
		s.log.Info().Str("file", zipName).Int("bytes", len(zipBytes)).Msg("DIAN en modo dev: envío simulado")
		return &entity.TransmissionResult{
			Success:     true,
			Status:      entity.StatusSubmitted,
			Platform:    PlatformName,
			ExternalID:  "dev-" + uuid.NewString(),
			Message:     "envío simulado (DIAN_APP_ENV=dev)",
			SubmittedAt: now,
		}, nil
	}

	res, err := s.submitter.SubmitZip(ctx, zipBytes, zipName)
	if err != nil {
		return nil, err
	}
	out := &entity.TransmissionResult{Platform: PlatformName, ExternalID: res.TrackID, SubmittedAt: now}
	switch {
	case res.Fault != "":
		out.Status = entity.StatusFailed
		out.ErrorCode = faultCode(res.Fault)
		out.Message = res.Fault
	case res.Accepted && res.TrackID != "":
		out.Success = true
		out.Status = entity.StatusSubmitted
	default:
		out.Status = entity.StatusRejected
		out.ErrorCode = entity.ErrorCodePlatformRejects
		out.Message = res.Errors
	}
	return out, nil
}

func (s *Strategy) CheckStatus(ctx context.Context, ref entity.TransmissionRef) (*entity.StatusResult, error) {
	if s.env == AppEnvDev || s.submitter == nil {
		return &entity.StatusResult{Success: true, Status: entity.StatusAccepted, ExternalID: ref.ExternalID, Message: "modo dev"}, nil
	}
	res, err := s.submitter.GetStatusZip(ctx, ref.ExternalID)
	if err != nil {
		return nil, err
	}
	out := &entity.StatusResult{ExternalID: ref.ExternalID, Message: res.StatusDescription}
	switch {
	case res.Fault != "":
		out.Status = entity.StatusFailed
		out.ErrorCode = faultCode(res.Fault)
		out.Message = res.Fault
	case res.IsValid:
		out.Success = true
		out.Status = entity.StatusAccepted
	case res.StatusCode == statusCodeProcessing:
		out.Success = true
		out.Status = entity.StatusPending
	default:
		out.Status = entity.StatusRejected
		out.ErrorCode = entity.ErrorCodePlatformRejects
		if res.Errors != "" {
			out.Message = res.Errors
		}
	}
	return out, nil
}

// faultCode un fault del WS con firma de indisponibilidad ("Service Unavailable", timeout)
// se reporta con el código transitorio para que el dispatcher lo reintente.
func faultCode(fault string) string {
	if resilience.MatchesTransient(fault) {
		return resilience.CodeUnavailable
	}
	return errorCodeSOAPFault
}

// Cancel la DIAN no anula: se emite una nota crédito.
func (s *Strategy) Cancel(context.Context, entity.TransmissionRef) (bool, error) {
	return false, fmt.Errorf("dian: %w (emitir nota crédito)", transmission.ErrUnsupported)
}
