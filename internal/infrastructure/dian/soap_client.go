package dian

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvTest ambiente de habilitación: SendTestSetAsync.
	AppEnvTest = "test"
	// AppEnvProd producción: SendBillAsync.
	AppEnvProd = "prod"
	// AppEnvDev local: no envía al WS DIAN.
	AppEnvDev = "dev"

	soapURLTest = "https://vpfe-hab.dian.gov.co/WcfDianCustomerServices.svc"
	soapURLProd = "https://vpfe.dian.gov.co/WcfDianCustomerServices.svc"

	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSTempuri  = "http://tempuri.org/"
	soapActionBase = "http://tempuri.org/IWcfDianCustomerServices/"
)

// SubmitResult resultado de la entrega al WS DIAN.
type SubmitResult struct {
	TrackID  string // ZipKey devuelto por SendBillAsync / SendTestSetAsync
	Accepted bool
	Fault    string // SOAP Fault (protocolo, autenticación, servicio caído)
	Errors   string
}

// StatusZipResult respuesta de GetStatusZip.
type StatusZipResult struct {
	IsValid           bool
	StatusCode        string
	StatusDescription string
	Errors            string
	Fault             string
}

// Submitter puerto del WS DIAN; la estrategia lo recibe para poder sustituirlo en tests.
type Submitter interface {
	SubmitZip(ctx context.Context, zipBytes []byte, filename string) (*SubmitResult, error)
	GetStatusZip(ctx context.Context, trackID string) (*StatusZipResult, error)
}

// SOAPClient implementa Submitter sobre net/http.
type SOAPClient struct {
	env        string
	testSetID  string
	url        string
	httpClient *http.Client
}

// NewSOAPClient env "test" o "prod". url vacío usa el endpoint oficial del ambiente.
// Timeout de red generoso (60 s): el WS DIAN puede tardar varios segundos.
func NewSOAPClient(env, testSetID, url string) (*SOAPClient, error) {
	if url == "" {
		switch env {
		case AppEnvProd:
			url = soapURLProd
		case AppEnvTest:
			url = soapURLTest
		default:
			return nil, fmt.Errorf("soap: entorno desconocido %q (usar 'test' o 'prod')", env)
		}
	}
	return &SOAPClient{
		env:        env,
		testSetID:  testSetID,
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"s:Envelope"`
	XmlnsS  string     `xml:"xmlns:s,attr"`
	Header  soapHeader `xml:"s:Header"`
	Body    soapBody   `xml:"s:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type sendBillAsyncBody struct {
	XMLName     xml.Name `xml:"SendBillAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

type sendTestSetAsyncBody struct {
	XMLName     xml.Name `xml:"SendTestSetAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
	TestSetID   string   `xml:"testSetId"`
}

type getStatusZipBody struct {
	XMLName xml.Name `xml:"GetStatusZip"`
	Xmlns   string   `xml:"xmlns,attr"`
	TrackID string   `xml:"trackId"`
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	SendBillResponse    *sendBillAsyncResponse    `xml:"SendBillAsyncResponse"`
	SendTestSetResponse *sendTestSetAsyncResponse `xml:"SendTestSetAsyncResponse"`
	StatusZipResponse   *getStatusZipResponse     `xml:"GetStatusZipResponse"`
	Fault               *soapFault                `xml:"Fault"`
}

type sendBillAsyncResponse struct {
	Result uploadDocumentResult `xml:"SendBillAsyncResult"`
}

type sendTestSetAsyncResponse struct {
	Result uploadDocumentResult `xml:"SendTestSetAsyncResult"`
}

type uploadDocumentResult struct {
	HasErrors        bool     `xml:"HasErrors"`
	ErrorMessageList []string `xml:"ErrorMessageList>string"`
	ZipKey           string   `xml:"ZipKey"`
}

type getStatusZipResponse struct {
	Result struct {
		Responses []dianResponse `xml:"DianResponse"`
	} `xml:"GetStatusZipResult"`
}

type dianResponse struct {
	IsValid           bool     `xml:"IsValid"`
	StatusCode        string   `xml:"StatusCode"`
	StatusDescription string   `xml:"StatusDescription"`
	ErrorMessage      []string `xml:"ErrorMessage>string"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

func (f *soapFault) String() string {
	return fmt.Sprintf("SOAP Fault [%s]: %s", strings.TrimSpace(f.FaultCode), strings.TrimSpace(f.FaultString))
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// SubmitZip envía el ZIP con la operación del ambiente configurado.
func (c *SOAPClient) SubmitZip(ctx context.Context, zipBytes []byte, filename string) (*SubmitResult, error) {
	b64Content := base64.StdEncoding.EncodeToString(zipBytes)
	var (
		action string
		body   interface{}
	)
	if c.env == AppEnvProd {
		action = soapActionBase + "SendBillAsync"
		body = &sendBillAsyncBody{Xmlns: soapNSTempuri, FileName: filename, ContentFile: b64Content}
	} else {
		action = soapActionBase + "SendTestSetAsync"
		body = &sendTestSetAsyncBody{Xmlns: soapNSTempuri, FileName: filename, ContentFile: b64Content, TestSetID: c.testSetID}
	}

	env, err := c.call(ctx, action, body)
	if err != nil {
		return nil, err
	}
	if env.Body.Fault != nil {
		return &SubmitResult{Fault: env.Body.Fault.String()}, nil
	}

	var result *uploadDocumentResult
	switch {
	case env.Body.SendBillResponse != nil:
		result = &env.Body.SendBillResponse.Result
	case env.Body.SendTestSetResponse != nil:
		result = &env.Body.SendTestSetResponse.Result
	default:
		return &SubmitResult{Errors: "respuesta SOAP vacía o inesperada"}, nil
	}
	return &SubmitResult{
		TrackID:  result.ZipKey,
		Accepted: !result.HasErrors,
		Errors:   strings.Join(result.ErrorMessageList, "; "),
	}, nil
}

// GetStatusZip consulta el procesamiento de un ZipKey.
func (c *SOAPClient) GetStatusZip(ctx context.Context, trackID string) (*StatusZipResult, error) {
	env, err := c.call(ctx, soapActionBase+"GetStatusZip", &getStatusZipBody{Xmlns: soapNSTempuri, TrackID: trackID})
	if err != nil {
		return nil, err
	}
	if env.Body.Fault != nil {
		return &StatusZipResult{Fault: env.Body.Fault.String()}, nil
	}
	if env.Body.StatusZipResponse == nil || len(env.Body.StatusZipResponse.Result.Responses) == 0 {
		return &StatusZipResult{Errors: "respuesta SOAP vacía o inesperada"}, nil
	}
	r := env.Body.StatusZipResponse.Result.Responses[0]
	return &StatusZipResult{
		IsValid:           r.IsValid,
		StatusCode:        r.StatusCode,
		StatusDescription: r.StatusDescription,
		Errors:            strings.Join(r.ErrorMessage, "; "),
	}, nil
}

// call serializa el envelope, hace el POST y desempaqueta la respuesta. Los errores de red
// y los HTTP sin cuerpo SOAP se devuelven como error para que el dispatcher decida si reintenta.
func (c *SOAPClient) call(ctx context.Context, action string, body interface{}) (*soapResponseEnvelope, error) {
	payload, err := xml.MarshalIndent(soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: body}}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // máx. 1 MB
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}

	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &resilience.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return nil, fmt.Errorf("soap: respuesta no parseable: %w", err)
	}
	return &env, nil
}
