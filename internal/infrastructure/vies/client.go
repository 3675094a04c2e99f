// Package vies cliente SOAP del servicio checkVat de la Comisión Europea.
package vies

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
	"github.com/jhoicas/Cumplimiento-api/pkg/taxid"
)

// DefaultURL endpoint público de VIES.
const DefaultURL = "https://ec.europa.eu/taxation_customs/vies/services/checkVatService"

const (
	soapNS     = "http://schemas.xmlsoap.org/soap/envelope/"
	checkVatNS = "urn:ec.europa.eu:taxud:vies:services:checkVat:types"
)

var _ compliance.TaxIDValidator = (*Client)(nil)

// Client valida NIF-IVA contra VIES. Un SOAP Fault (MS_UNAVAILABLE, TIMEOUT...) se devuelve
// como error para que el llamador aplique fail-open; un "valid=false" es una respuesta real.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient url vacío usa DefaultURL.
func NewClient(url string, timeout time.Duration, log zerolog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}, log: log}
}

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soapenv:Envelope"`
	XmlnsS  string      `xml:"xmlns:soapenv,attr"`
	Body    requestBody `xml:"soapenv:Body"`
}

type requestBody struct {
	CheckVat checkVatRequest `xml:"checkVat"`
}

type checkVatRequest struct {
	Xmlns       string `xml:"xmlns,attr"`
	CountryCode string `xml:"countryCode"`
	VATNumber   string `xml:"vatNumber"`
}

type responseEnvelope struct {
	Body struct {
		Response *struct {
			CountryCode string `xml:"countryCode"`
			VATNumber   string `xml:"vatNumber"`
			Valid       bool   `xml:"valid"`
			Name        string `xml:"name"`
		} `xml:"checkVatResponse"`
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// Validate consulta un NIF-IVA normalizado ("DE123456789").
func (c *Client) Validate(ctx context.Context, taxID string) (bool, error) {
	prefix, number, err := taxid.Split(taxID)
	if err != nil {
		return false, nil
	}

	payload, err := xml.Marshal(requestEnvelope{
		XmlnsS: soapNS,
		Body:   requestBody{CheckVat: checkVatRequest{Xmlns: checkVatNS, CountryCode: prefix, VATNumber: number}},
	})
	if err != nil {
		return false, fmt.Errorf("vies: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("vies: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("vies: timeout o cancelación: %w", ctx.Err())
		}
		return false, fmt.Errorf("vies: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("vies: leer respuesta: %w", err)
	}

	var env responseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return false, &resilience.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return false, fmt.Errorf("vies: respuesta no parseable: %w", err)
	}
	if f := env.Body.Fault; f != nil {
		return false, fmt.Errorf("vies: SOAP Fault [%s]: %s", strings.TrimSpace(f.FaultCode), strings.TrimSpace(f.FaultString))
	}
	if env.Body.Response == nil {
		return false, fmt.Errorf("vies: respuesta vacía (HTTP %d)", resp.StatusCode)
	}

	c.log.Debug().Str("tax_id", taxID).Bool("valid", env.Body.Response.Valid).Msg("respuesta VIES")
	return env.Body.Response.Valid, nil
}
