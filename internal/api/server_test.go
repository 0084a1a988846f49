package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/envdash/internal/config"
	"github.com/edvin/envdash/internal/core"
	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/poller"
	"github.com/edvin/envdash/internal/pullstore"
	"github.com/edvin/envdash/internal/residency"
	"github.com/edvin/envdash/internal/validation"
)

type stubVendor struct{}

func (stubVendor) ListCustomers(context.Context) ([]model.RawCustomer, error) {
	return nil, nil
}

type stubBackup struct{}

func (stubBackup) Trigger(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type stubProber struct{}

func (stubProber) Probe(_ context.Context, domain string) model.ProbeResult {
	return model.ProbeResult{Domain: domain, Reachable: true, HTTPStatus: 200}
}

func newTestServer(t *testing.T, cfg *config.Config, checks ...ReadyCheck) *Server {
	t.Helper()
	logger := zerolog.Nop()

	res := residency.FromEntries(nil)
	store := pullstore.New(filepath.Join(t.TempDir(), "pulls.json"), logger)
	orch := validation.New(stubProber{}, validation.Options{}, logger)
	polls := poller.New(core.NewEnvironmentService(orch, res), poller.Options{}, logger)
	t.Cleanup(polls.Stop)

	services := core.NewServices(core.Deps{
		Vendor:     stubVendor{},
		Backup:     stubBackup{},
		Residency:  res,
		Timestamps: store,
		Validator:  orch,
		Polls:      polls,
		Logger:     logger,
	})
	return NewServer(logger, cfg, services, checks...)
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Readyz(t *testing.T) {
	ok := ReadyCheck{Name: "timestamps", Check: func(context.Context) error { return nil }}
	s := newTestServer(t, &config.Config{}, ok)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"timestamps":"ok"}`, rec.Body.String())
}

func TestServer_ReadyzFailing(t *testing.T) {
	bad := ReadyCheck{Name: "timestamps", Check: func(context.Context) error { return errors.New("read-only file system") }}
	s := newTestServer(t, &config.Config{}, bad)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"timestamps":"read-only file system"}`, rec.Body.String())
}

func TestServer_MetricsRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(t, &config.Config{MetricsListenAddr: ":9090"})
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TokenGuardsAPI(t *testing.T) {
	s := newTestServer(t, &config.Config{DashboardToken: "s3cret"})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/customers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/customers", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health endpoints stay open.
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"GET", "/api/customers", "", http.StatusOK},
		{"POST", "/api/validate-environment", `{"customerId": 1, "domain": "acme", "itarHosting": true}`, http.StatusOK},
		{"POST", "/api/validate-link", `{"domain": "acme"}`, http.StatusOK},
		{"GET", "/api/validation/acme", "", http.StatusOK},
		{"POST", "/api/pull/record", `{"customerId": 1}`, http.StatusOK},
		{"GET", "/api/pull/1/poll", "", http.StatusNotFound},
		{"GET", "/api/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_CustomersShape(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `[]`, string(body["customers"]))
	assert.Contains(t, body, "summary")
}
