package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/cache"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/countries"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/Cumplimiento-api/internal/interfaces/http"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// fakeStrategy acepta todo lo que le llega para las plataformas indicadas.
type fakeStrategy struct {
	name      string
	platforms map[string]bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Supports(platform string) bool {
	return f.platforms == nil || f.platforms[platform]
}

func (f *fakeStrategy) Send(_ context.Context, p *entity.TransmissionPayload) (*entity.TransmissionResult, error) {
	return &entity.TransmissionResult{Success: true, Status: entity.StatusSubmitted, ExternalID: "ext-" + p.InvoiceID}, nil
}

func (f *fakeStrategy) CheckStatus(_ context.Context, ref entity.TransmissionRef) (*entity.StatusResult, error) {
	return &entity.StatusResult{Success: true, Status: entity.StatusAccepted, ExternalID: ref.ExternalID}, nil
}

func (f *fakeStrategy) Cancel(context.Context, entity.TransmissionRef) (bool, error) {
	return false, transmission.ErrUnsupported
}

type testEnv struct {
	app      *fiber.App
	settings *memory.ComplianceSettingsRepo
}

func newTestEnv(t *testing.T, features config.FeatureFlags) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	store, err := countries.Load("")
	require.NoError(t, err)

	checker := compliance.NewTaxIDChecker(nil, cache.NewMemory(nil), 0, nil, log)
	svc := compliance.NewService(store,
		compliance.NewContextBuilder(store, checker, log),
		compliance.NewRuleResolver(store, log),
		log)
	ledgerSvc := ledger.NewService(memory.NewNumberingRepository(), store, nil, nil, log)

	registry, err := transmission.NewRegistry(
		&fakeStrategy{name: "email"},
		&fakeStrategy{name: "rest", platforms: map[string]bool{"superpdp": true}},
	)
	require.NoError(t, err)
	dispatcher := transmission.NewDispatcher(registry, transmission.DefaultConfig(), nil, nil, log)

	settings := memory.NewComplianceSettingsRepository()
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Compliance:   svc,
		Corrections:  compliance.NewCorrectionService(store, ledgerSvc, log),
		Ledger:       ledgerSvc,
		Dispatcher:   dispatcher,
		SettingsRepo: settings,
		Features:     features,
		JWTSecret:    testJWTSecret,
	})
	return &testEnv{app: app, settings: settings}
}

func allFeatures() config.FeatureFlags {
	return config.FeatureFlags{Transmissions: true, Corrections: true}
}

func (e *testEnv) do(t *testing.T, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m), string(raw))
	return m
}

func frToDEFacts() map[string]any {
	return map[string]any{
		"company": map[string]any{"countryCode": "FR", "vatNumber": "FR12345678901", "isVatRegistered": true},
		"client":  map[string]any{"countryCode": "DE", "vatNumber": "DE123456789", "isCompany": true},
		"items":   []map[string]any{{"type": "service"}},
	}
}

// ── motor de decisión ────────────────────────────────────────────────────────

func TestRouter_SinTokenRetorna401(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, _ := env.do(t, http.MethodGet, "/api/compliance/countries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ResolveFranciaAlemania(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, raw := env.do(t, http.MethodPost, "/api/compliance/resolve", "auditor", frToDEFacts())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	body := decode(t, raw)
	rules := body["rules"].(map[string]any)
	assert.Equal(t, true, rules["vat"].(map[string]any)["reverseCharge"], "B2B intracomunitario con inversión")
	assert.Equal(t, "superpdp", rules["transmission"].(map[string]any)["platform"])
}

func TestRouter_ResolveSinPaisRetorna400(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, raw := env.do(t, http.MethodPost, "/api/compliance/resolve", "operator", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "VALIDATION")
}

func TestRouter_VATConInversionNoCobraCuota(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	req := frToDEFacts()
	req["lines"] = []map[string]any{{"quantity": "2", "unitPrice": "50"}}

	resp, raw := env.do(t, http.MethodPost, "/api/compliance/vat", "operator", req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	totals := decode(t, raw)["totals"].(map[string]any)
	assert.True(t, decimal.RequireFromString(totals["totalHT"].(string)).Equal(decimal.NewFromInt(100)))
	assert.True(t, decimal.RequireFromString(totals["totalVAT"].(string)).IsZero(), "inversión del sujeto pasivo: cuota cero")
}

func TestRouter_PaisExactoYDesconocido(t *testing.T) {
	env := newTestEnv(t, allFeatures())

	resp, raw := env.do(t, http.MethodGet, "/api/compliance/countries/fr", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = env.do(t, http.MethodGet, "/api/compliance/countries/XX", "auditor", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "DEFAULT no sustituye a un país inexistente")
	assert.Contains(t, string(raw), "NOT_FOUND")

	resp, raw = env.do(t, http.MethodGet, "/api/compliance/countries", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"FR"`)
}

// ── credenciales por plataforma ──────────────────────────────────────────────

func TestRouter_SettingsEnmascaraSecretos(t *testing.T) {
	env := newTestEnv(t, allFeatures())

	resp, raw := env.do(t, http.MethodPut, "/api/compliance/settings/SuperPDP", "admin", map[string]any{
		"apiUrl":       "https://api.superpdp.test",
		"clientId":     "cid",
		"clientSecret": "s3cr3t",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.NotContains(t, string(raw), "s3cr3t", "el secreto nunca sale en la respuesta")

	body := decode(t, raw)
	assert.Equal(t, "superpdp", body["platform"])
	assert.Equal(t, true, body["clientSecretSet"])
	assert.Equal(t, false, body["apiKeySet"])

	// un secreto vacío conserva el almacenado
	resp, raw = env.do(t, http.MethodPut, "/api/compliance/settings/superpdp", "admin", map[string]any{
		"apiUrl":   "https://api2.superpdp.test",
		"clientId": "cid",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, true, decode(t, raw)["clientSecretSet"])

	stored, err := env.settings.Get(context.Background(), testCompanyID, "superpdp")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "s3cr3t", stored.ClientSecret)
	assert.Equal(t, "https://api2.superpdp.test", stored.APIURL)
}

func TestRouter_SettingsSoloAdmin(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, _ := env.do(t, http.MethodGet, "/api/compliance/settings/superpdp", "operator", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/compliance/settings/superpdp", "admin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "plataforma sin configurar")
}

// ── numeración ───────────────────────────────────────────────────────────────

func TestRouter_NumeracionYCadena(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	next := map[string]any{
		"countryCode":  "FR",
		"documentType": "invoice",
		"totalHT":      "100",
		"totalVAT":     "20",
		"totalTTC":     "120",
	}

	resp, raw := env.do(t, http.MethodPost, "/api/numbering/next", "operator", next)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	first := decode(t, raw)
	assert.EqualValues(t, 1, first["sequence"])

	resp, raw = env.do(t, http.MethodPost, "/api/numbering/next", "operator", next)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	second := decode(t, raw)
	assert.EqualValues(t, 2, second["sequence"])
	assert.Equal(t, first["hash"], second["previousHash"], "cada eslabón apunta al anterior")

	resp, raw = env.do(t, http.MethodGet, "/api/numbering/chain?country=FR&documentType=invoice", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	chain := decode(t, raw)
	assert.Equal(t, true, chain["valid"])
	assert.EqualValues(t, 2, chain["checked"])

	resp, raw = env.do(t, http.MethodGet, "/api/numbering/gaps?country=FR&documentType=invoice", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	gaps := decode(t, raw)
	assert.Equal(t, true, gaps["compliant"])
	assert.Empty(t, gaps["gaps"])

	resp, _ = env.do(t, http.MethodGet, "/api/numbering/chain?country=FR", "auditor", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "documentType obligatorio")
}

func TestRouter_ReleaseSegunPolitica(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	issue := func(country, docType string) {
		resp, raw := env.do(t, http.MethodPost, "/api/numbering/next", "operator", map[string]any{
			"countryCode": country, "documentType": docType, "totalTTC": "10",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	issue("FR", "invoice")
	resp, raw := env.do(t, http.MethodPost, "/api/numbering/release", "admin", map[string]any{
		"countryCode": "FR", "documentType": "invoice", "sequence": 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "RELEASE_NOT_PERMITTED")

	// país sin configuración: política DEFAULT, que permite liberar
	issue("ZZ", "receipt")
	issue("ZZ", "receipt")
	release := map[string]any{"countryCode": "ZZ", "documentType": "receipt", "sequence": 2}

	resp, _ = env.do(t, http.MethodPost, "/api/numbering/release", "operator", release)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "solo admin libera números")

	resp, raw = env.do(t, http.MethodPost, "/api/numbering/release", "admin", map[string]any{
		"countryCode": "ZZ", "documentType": "receipt", "sequence": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "solo el último número: %s", raw)

	resp, _ = env.do(t, http.MethodPost, "/api/numbering/release", "admin", release)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// ── transmisión ──────────────────────────────────────────────────────────────

func TestRouter_TransmisionYBreakers(t *testing.T) {
	env := newTestEnv(t, allFeatures())

	resp, raw := env.do(t, http.MethodPost, "/api/transmissions", "operator", map[string]any{
		"invoiceId":     "inv-1",
		"invoiceNumber": "F2026-1",
		"platform":      "superpdp",
		"xml":           []byte("<Invoice/>"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	res := decode(t, raw)
	assert.Equal(t, "ext-inv-1", res["externalId"])
	assert.Equal(t, "superpdp", res["platform"])
	assert.EqualValues(t, 1, res["attempts"])

	resp, raw = env.do(t, http.MethodGet, "/api/transmissions/superpdp/ext-inv-1/status", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "accepted", decode(t, raw)["status"])

	resp, raw = env.do(t, http.MethodPost, "/api/transmissions/superpdp/ext-inv-1/cancel", "operator", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode, string(raw))

	resp, raw = env.do(t, http.MethodGet, "/api/transmissions/breakers", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "superpdp")

	resp, _ = env.do(t, http.MethodPost, "/api/transmissions/breakers/superpdp/reset", "operator", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/transmissions/breakers/superpdp/reset", "admin", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/transmissions/breakers/ksef/reset", "admin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "sin breaker creado")
}

func TestRouter_ModuloDesactivado(t *testing.T) {
	env := newTestEnv(t, config.FeatureFlags{Transmissions: false, Corrections: true})
	resp, raw := env.do(t, http.MethodGet, "/api/transmissions/breakers", "admin", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "MODULE_DISABLED")
}

// ── rectificaciones ──────────────────────────────────────────────────────────

func TestRouter_RectificacionFranciaEmiteAbonoNumerado(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, raw := env.do(t, http.MethodPost, "/api/corrections", "operator", map[string]any{
		"countryCode": "FR",
		"document": map[string]any{
			"id": "doc-1", "number": "F2026-7", "status": "issued",
			"totalHT": "100", "totalVAT": "20", "totalTTC": "120",
		},
		"kind": "full",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	body := decode(t, raw)
	decision := body["decision"].(map[string]any)
	assert.Equal(t, "credit_note", decision["action"], "FR no permite modificar")
	assert.Equal(t, "completed", decision["status"])
	require.NotNil(t, body["numbering"], "el abono completado se numera")
	assert.EqualValues(t, 1, body["numbering"].(map[string]any)["sequence"])
}

func TestRouter_RectificacionSinDocumento(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	resp, _ := env.do(t, http.MethodPost, "/api/corrections", "operator", map[string]any{"countryCode": "FR"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ── roles por ruta ───────────────────────────────────────────────────────────

func TestRouter_MatrizDeRolesPorRuta(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	cases := []struct {
		method, path, role string
		forbidden          bool
	}{
		{http.MethodGet, "/api/compliance/countries", apphttp.RoleAuditor, false},
		{http.MethodGet, "/api/numbering/state?documentType=invoice", apphttp.RoleAuditor, false},
		{http.MethodGet, "/api/transmissions/breakers", apphttp.RoleAuditor, false},
		{http.MethodPost, "/api/numbering/next", apphttp.RoleAuditor, true},
		{http.MethodPost, "/api/transmissions/", apphttp.RoleAuditor, true},
		{http.MethodPost, "/api/transmissions/superpdp/ext-1/cancel", apphttp.RoleAuditor, true},
		{http.MethodPost, "/api/corrections/", apphttp.RoleAuditor, true},
		{http.MethodPost, "/api/numbering/next", apphttp.RoleOperator, false},
		{http.MethodPost, "/api/numbering/release", apphttp.RoleOperator, true},
		{http.MethodGet, "/api/compliance/settings", apphttp.RoleOperator, true},
		{http.MethodPut, "/api/compliance/settings/superpdp", apphttp.RoleOperator, true},
		{http.MethodPost, "/api/transmissions/breakers/superpdp/reset", apphttp.RoleOperator, true},
		{http.MethodPost, "/api/numbering/release", apphttp.RoleAdmin, false},
		{http.MethodPost, "/api/transmissions/breakers/superpdp/reset", apphttp.RoleAdmin, false},
	}
	for _, c := range cases {
		resp, body := env.do(t, c.method, c.path, c.role, map[string]any{})
		if c.forbidden {
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s como %s", c.method, c.path, c.role)
			assert.Contains(t, string(body), "FORBIDDEN")
		} else {
			assert.NotEqual(t, http.StatusForbidden, resp.StatusCode, "%s %s como %s: %s", c.method, c.path, c.role, body)
			assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
		}
	}
}
