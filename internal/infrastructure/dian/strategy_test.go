package dian_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/dian"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

const invoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>SETP990000001</cbc:ID>
  <cbc:UUID schemeName="CUFE-SHA384">a1b2c3</cbc:UUID>
</Invoice>`

const acceptedResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<SendTestSetAsyncResponse xmlns="http://tempuri.org/"><SendTestSetAsyncResult>
<HasErrors>false</HasErrors><ZipKey>zip-key-1</ZipKey></SendTestSetAsyncResult></SendTestSetAsyncResponse>
</s:Body></s:Envelope>`

const rejectedResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<SendTestSetAsyncResponse xmlns="http://tempuri.org/"><SendTestSetAsyncResult>
<HasErrors>true</HasErrors><ErrorMessageList><string>Regla FAD06: NIT inválido</string></ErrorMessageList>
</SendTestSetAsyncResult></SendTestSetAsyncResponse></s:Body></s:Envelope>`

const faultResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault><faultcode>s:Server</faultcode><faultstring>Service Unavailable</faultstring></s:Fault>
</s:Body></s:Envelope>`

const statusResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<GetStatusZipResponse xmlns="http://tempuri.org/"><GetStatusZipResult>
<DianResponse><IsValid>%VALID%</IsValid><StatusCode>%CODE%</StatusCode><StatusDescription>Procesado</StatusDescription></DianResponse>
</GetStatusZipResult></GetStatusZipResponse></s:Body></s:Envelope>`

// ── helpers ──────────────────────────────────────────────────────────────────

type capture struct {
	action string
	body   string
}

func soapServer(t *testing.T, response string, got *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			got.action = r.Header.Get("SOAPAction")
			got.body = string(raw)
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStrategy(t *testing.T, url string) *dian.Strategy {
	t.Helper()
	client, err := dian.NewSOAPClient(dian.AppEnvTest, "set-1", url)
	require.NoError(t, err)
	return dian.NewStrategy(dian.AppEnvTest, client, clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), zerolog.Nop())
}

func payload() *entity.TransmissionPayload {
	return &entity.TransmissionPayload{
		InvoiceID:     "inv-1",
		InvoiceNumber: "SETP-990000001",
		Platform:      "dian",
		XML:           []byte(invoiceXML),
		Sender:        entity.Party{TaxID: "900123456-7", CountryCode: "CO"},
	}
}

// ── validación y empaquetado ─────────────────────────────────────────────────

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, dian.ValidateDocument([]byte(invoiceXML)))

	cases := map[string]string{
		"vacío":      "",
		"malformado": "<Invoice>",
		"raíz":       "<Order><ID>1</ID><UUID>x</UUID></Order>",
		"sin UUID":   "<Invoice><ID>1</ID></Invoice>",
	}
	for name, xml := range cases {
		t.Run(name, func(t *testing.T) {
			err := dian.ValidateDocument([]byte(xml))
			var ve *resilience.ValidationError
			assert.True(t, errors.As(err, &ve), "debe ser error de validación")
		})
	}
}

func TestFilenames(t *testing.T) {
	xmlName, zipName := dian.Filenames("900123456-7", "SETP-990000001")
	assert.Equal(t, "900123456SETP990000001.xml", xmlName)
	assert.Equal(t, "900123456SETP990000001.zip", zipName)
}

func TestCompressXMLToZip(t *testing.T) {
	data, err := dian.CompressXMLToZip([]byte(invoiceXML), "a.xml")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "a.xml", zr.File[0].Name)
}

// ── envío ────────────────────────────────────────────────────────────────────

func TestSend_Aceptado(t *testing.T) {
	var got capture
	s := newStrategy(t, soapServer(t, acceptedResponse, &got).URL)

	res, err := s.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, entity.StatusSubmitted, res.Status)
	assert.Equal(t, "zip-key-1", res.ExternalID)
	assert.True(t, strings.HasSuffix(got.action, "SendTestSetAsync"))
	assert.Contains(t, got.body, "<fileName>900123456SETP990000001.zip</fileName>")
	assert.Contains(t, got.body, "<testSetId>set-1</testSetId>")

	m := regexp.MustCompile(`<contentFile>([^<]+)</contentFile>`).FindStringSubmatch(got.body)
	require.Len(t, m, 2)
	_, err = base64.StdEncoding.DecodeString(m[1])
	assert.NoError(t, err, "el ZIP viaja en Base64")
}

func TestSend_RechazadoPorLaDIAN(t *testing.T) {
	s := newStrategy(t, soapServer(t, rejectedResponse, nil).URL)

	res, err := s.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, entity.StatusRejected, res.Status)
	assert.Equal(t, entity.ErrorCodePlatformRejects, res.ErrorCode)
	assert.Contains(t, res.Message, "FAD06")
}

func TestSend_FaultTransitorioSeReportaComoResultado(t *testing.T) {
	s := newStrategy(t, soapServer(t, faultResponse, nil).URL)

	res, err := s.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, res.Status)
	assert.Equal(t, resilience.CodeUnavailable, res.ErrorCode)
	assert.True(t, resilience.IsTransientCode(res.ErrorCode), "el dispatcher debe poder reintentarlo")
}

func TestSend_DocumentoInvalidoNoLlamaAlWS(t *testing.T) {
	var got capture
	s := newStrategy(t, soapServer(t, acceptedResponse, &got).URL)
	p := payload()
	p.XML = []byte("<Invoice><ID>1</ID></Invoice>")

	_, err := s.Send(context.Background(), p)

	var ve *resilience.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, got.action)
}

func TestSend_ModoDev(t *testing.T) {
	s := dian.NewStrategy(dian.AppEnvDev, nil, nil, zerolog.Nop())
	res, err := s.Send(context.Background(), payload())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.ExternalID, "dev-"))
}

// ── estado y anulación ───────────────────────────────────────────────────────

func TestCheckStatus(t *testing.T) {
	cases := []struct {
		valid, code string
		want        entity.TransmissionStatus
	}{
		{"true", "00", entity.StatusAccepted},
		{"false", "98", entity.StatusPending},
		{"false", "99", entity.StatusRejected},
	}
	for _, tc := range cases {
		body := strings.NewReplacer("%VALID%", tc.valid, "%CODE%", tc.code).Replace(statusResponse)
		s := newStrategy(t, soapServer(t, body, nil).URL)
		res, err := s.CheckStatus(context.Background(), entity.TransmissionRef{Platform: "dian", ExternalID: "zip-key-1"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Status, "código %s", tc.code)
	}
}

func TestCancel_NoSoportado(t *testing.T) {
	s := dian.NewStrategy(dian.AppEnvTest, nil, nil, zerolog.Nop())
	_, err := s.Cancel(context.Background(), entity.TransmissionRef{})
	assert.ErrorIs(t, err, transmission.ErrUnsupported)
}

func TestSupports(t *testing.T) {
	s := dian.NewStrategy(dian.AppEnvDev, nil, nil, zerolog.Nop())
	assert.True(t, s.Supports("dian"))
	assert.False(t, s.Supports("sdi"))
}
