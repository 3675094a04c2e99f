package vies_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/vies"
)

const validResponse = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <ns2:checkVatResponse xmlns:ns2="urn:ec.europa.eu:taxud:vies:services:checkVat:types">
      <ns2:countryCode>DE</ns2:countryCode>
      <ns2:vatNumber>123456789</ns2:vatNumber>
      <ns2:valid>%s</ns2:valid>
      <ns2:name>ACME GMBH</ns2:name>
    </ns2:checkVatResponse>
  </env:Body>
</env:Envelope>`

const faultResponse = `<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <env:Fault><faultcode>env:Server</faultcode><faultstring>MS_UNAVAILABLE</faultstring></env:Fault>
  </env:Body>
</env:Envelope>`

func server(t *testing.T, status int, body string, seen *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			*seen = string(raw)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate_Valido(t *testing.T) {
	var req string
	srv := server(t, http.StatusOK, fmt.Sprintf(validResponse, "true"), &req)
	c := vies.NewClient(srv.URL, time.Second, zerolog.Nop())

	ok, err := c.Validate(context.Background(), "DE123456789")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, req, "<countryCode>DE</countryCode>")
	assert.Contains(t, req, "<vatNumber>123456789</vatNumber>")
}

func TestValidate_InvalidoEsRespuestaReal(t *testing.T) {
	srv := server(t, http.StatusOK, fmt.Sprintf(validResponse, "false"), nil)
	c := vies.NewClient(srv.URL, time.Second, zerolog.Nop())

	ok, err := c.Validate(context.Background(), "DE123456789")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_FaultEsError(t *testing.T) {
	srv := server(t, http.StatusInternalServerError, faultResponse, nil)
	c := vies.NewClient(srv.URL, time.Second, zerolog.Nop())

	_, err := c.Validate(context.Background(), "FR12345678901")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MS_UNAVAILABLE")
}

func TestValidate_HTTPSinCuerpoSOAP(t *testing.T) {
	srv := server(t, http.StatusServiceUnavailable, "down", nil)
	c := vies.NewClient(srv.URL, time.Second, zerolog.Nop())

	_, err := c.Validate(context.Background(), "FR12345678901")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestValidate_IdentificadorMalformado(t *testing.T) {
	c := vies.NewClient("http://127.0.0.1:1", time.Second, zerolog.Nop())
	ok, err := c.Validate(context.Background(), "12")
	assert.NoError(t, err)
	assert.False(t, ok, "sin prefijo de país no se consulta")
}
