// Package platform estrategia REST genérica para las plataformas de facturación con API
// JSON (PDP francesas, Chorus Pro, Peppol AP, SDI, KSeF, VeriFactu, FACe).
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

const errorCodeAuth = "AUTH_ERROR"

var _ transmission.Strategy = (*RESTStrategy)(nil)

// RESTStrategy una sola implementación para todas las plataformas listadas; cada una tiene
// sus propias credenciales y su propio breaker en el dispatcher.
type RESTStrategy struct {
	platforms   map[string]bool
	credentials *CredentialResolver
	tokens      *TokenSource
	httpClient  *http.Client
	clock       clock.Clock
	log         zerolog.Logger
}

// NewRESTStrategy platforms son las claves de la tabla de países que atiende.
func NewRESTStrategy(platforms []string, credentials *CredentialResolver, tokens *TokenSource, httpClient *http.Client, clk clock.Clock, log zerolog.Logger) *RESTStrategy {
	set := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		set[p] = true
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &RESTStrategy{platforms: set, credentials: credentials, tokens: tokens, httpClient: httpClient, clock: clk, log: log}
}

func (s *RESTStrategy) Name() string { return "rest" }

func (s *RESTStrategy) Supports(platform string) bool { return s.platforms[platform] }

type partyJSON struct {
	Name        string `json:"name"`
	TaxID       string `json:"taxId"`
	CountryCode string `json:"countryCode"`
	Email       string `json:"email,omitempty"`
	RoutingID   string `json:"routingId,omitempty"`
}

type submitRequest struct {
	InvoiceID     string            `json:"invoiceId"`
	InvoiceNumber string            `json:"invoiceNumber"`
	DocumentType  string            `json:"documentType"`
	Format        string            `json:"format,omitempty"`
	XML           []byte            `json:"xml,omitempty"` // base64 por encoding/json
	PDF           []byte            `json:"pdf,omitempty"`
	Sender        partyJSON         `json:"sender"`
	Recipient     partyJSON         `json:"recipient"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type platformResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toParty(p entity.Party) partyJSON {
	return partyJSON{Name: p.Name, TaxID: p.TaxID, CountryCode: p.CountryCode, Email: p.Email, RoutingID: p.RoutingID}
}

// notConfigured resultado sin llamada de red: la plataforma no está habilitada para la empresa.
func (s *RESTStrategy) notConfigured(platform string) *entity.TransmissionResult {
	return &entity.TransmissionResult{
		Status:      entity.StatusFailed,
		Platform:    platform,
		ErrorCode:   entity.ErrorCodeNotConfigured,
		Message:     fmt.Sprintf("plataforma %s sin credenciales configuradas", platform),
		SubmittedAt: s.clock.Now(),
	}
}

func (s *RESTStrategy) Send(ctx context.Context, p *entity.TransmissionPayload) (*entity.TransmissionResult, error) {
	if len(p.XML) == 0 && len(p.PDF) == 0 {
		return nil, &resilience.ValidationError{Reason: "documento sin XML ni PDF"}
	}
	creds, ok, err := s.credentials.Resolve(ctx, p.CompanyID, p.Platform)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.notConfigured(p.Platform), nil
	}

	body, err := json.Marshal(submitRequest{
		InvoiceID:     p.InvoiceID,
		InvoiceNumber: p.InvoiceNumber,
		DocumentType:  p.DocumentType,
		Format:        p.Format,
		XML:           p.XML,
		PDF:           p.PDF,
		Sender:        toParty(p.Sender),
		Recipient:     toParty(p.Recipient),
		Metadata:      p.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: serializar documento: %w", p.Platform, err)
	}

	status, pr, err := s.do(ctx, p.CompanyID, p.Platform, creds, http.MethodPost, "/invoices", body)
	if err != nil {
		return nil, err
	}
	res := &entity.TransmissionResult{Platform: p.Platform, ExternalID: pr.ID, Message: pr.Message, SubmittedAt: s.clock.Now()}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		res.Status = entity.StatusFailed
		res.ErrorCode = errorCodeAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		res.Status = entity.StatusRejected
		res.ErrorCode = entity.ErrorCodeValidation
	case status >= 400:
		res.Status = entity.StatusRejected
		res.ErrorCode = entity.ErrorCodePlatformRejects
	default:
		res.Status = mapStatus(pr.Status, entity.StatusSubmitted)
		res.Success = res.Status != entity.StatusRejected && res.Status != entity.StatusFailed
	}
	if pr.Code != "" && !res.Success && res.ErrorCode == entity.ErrorCodePlatformRejects {
		res.ErrorCode = pr.Code
	}
	return res, nil
}

func (s *RESTStrategy) CheckStatus(ctx context.Context, ref entity.TransmissionRef) (*entity.StatusResult, error) {
	creds, ok, err := s.credentials.Resolve(ctx, ref.CompanyID, ref.Platform)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &entity.StatusResult{Status: entity.StatusFailed, ExternalID: ref.ExternalID, ErrorCode: entity.ErrorCodeNotConfigured}, nil
	}
	status, pr, err := s.do(ctx, ref.CompanyID, ref.Platform, creds, http.MethodGet, "/invoices/"+url.PathEscape(ref.ExternalID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	res := &entity.StatusResult{ExternalID: ref.ExternalID, Message: pr.Message}
	switch {
	case status == http.StatusNotFound:
		res.Status = entity.StatusFailed
		res.ErrorCode = entity.ErrorCodePlatformRejects
		res.Message = "transmisión desconocida para la plataforma"
	case status >= 400:
		res.Status = entity.StatusFailed
		res.ErrorCode = errorCodeAuth
	default:
		res.Status = mapStatus(pr.Status, entity.StatusPending)
		res.Success = res.Status != entity.StatusRejected && res.Status != entity.StatusFailed
	}
	return res, nil
}

func (s *RESTStrategy) Cancel(ctx context.Context, ref entity.TransmissionRef) (bool, error) {
	creds, ok, err := s.credentials.Resolve(ctx, ref.CompanyID, ref.Platform)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	status, _, err := s.do(ctx, ref.CompanyID, ref.Platform, creds, http.MethodPost, "/invoices/"+url.PathEscape(ref.ExternalID)+"/cancel", nil)
	if err != nil {
		return false, err
	}
	return status < 300, nil
}

// do ejecuta la llamada autenticada. 429 y 5xx se devuelven como *resilience.StatusError;
// el resto de códigos los interpreta el llamador.
func (s *RESTStrategy) do(ctx context.Context, companyID, platform string, creds Credentials, method, path string, body []byte) (int, platformResponse, error) {
	var pr platformResponse
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(creds.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, pr, fmt.Errorf("%s: crear request: %w", platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.APIKey != "" {
		req.Header.Set("X-API-Key", creds.APIKey)
	} else {
		tok, err := s.tokens.Token(ctx, companyID, platform, creds)
		if err != nil {
			return 0, pr, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, pr, fmt.Errorf("%s: timeout o cancelación: %w", platform, ctx.Err())
		}
		return 0, pr, fmt.Errorf("%s: llamada HTTP fallida: %w", platform, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, pr, fmt.Errorf("%s: leer respuesta: %w", platform, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp.StatusCode, pr, &resilience.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode == http.StatusUnauthorized && creds.APIKey == "" {
		s.tokens.Invalidate(ctx, companyID, platform)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &pr); err != nil {
			pr.Message = string(raw)
		}
	}
	s.log.Debug().Str("platform", platform).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("respuesta de plataforma")
	return resp.StatusCode, pr, nil
}

func mapStatus(raw string, def entity.TransmissionStatus) entity.TransmissionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered":
		return entity.StatusDelivered
	case "accepted", "approved":
		return entity.StatusAccepted
	case "validated", "valid":
		return entity.StatusValidated
	case "submitted", "received", "deposited":
		return entity.StatusSubmitted
	case "pending", "processing", "in_progress":
		return entity.StatusPending
	case "rejected", "refused":
		return entity.StatusRejected
	case "failed", "error":
		return entity.StatusFailed
	default:
		return def
	}
}
