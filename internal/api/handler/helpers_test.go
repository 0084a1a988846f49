package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/envdash/internal/core"
	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/poller"
	"github.com/edvin/envdash/internal/pullstore"
	"github.com/edvin/envdash/internal/residency"
	"github.com/edvin/envdash/internal/validation"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// ---------- Fakes ----------

type fakeVendor struct {
	customers []model.RawCustomer
	err       error
}

func (f *fakeVendor) ListCustomers(context.Context) ([]model.RawCustomer, error) {
	return f.customers, f.err
}

type fakeBackup struct {
	mu        sync.Mutex
	databases []string
	err       error
}

func (f *fakeBackup) Trigger(_ context.Context, database string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.databases = append(f.databases, database)
	return json.RawMessage(`{"queued":true}`), nil
}

type fakeProber struct {
	calls   atomic.Int32
	results map[string]model.ProbeResult
}

func (f *fakeProber) Probe(_ context.Context, domain string) model.ProbeResult {
	f.calls.Add(1)
	if r, ok := f.results[domain]; ok {
		r.Domain = domain
		return r
	}
	return model.ProbeResult{Domain: domain, Reason: model.ReasonNetworkError, Error: "no such host"}
}

// testEnv wires real services around fake collaborators.
type testEnv struct {
	vendor   *fakeVendor
	backup   *fakeBackup
	prober   *fakeProber
	orch     *validation.Orchestrator
	polls    *poller.Poller
	store    *pullstore.Store
	services *core.Services
}

// never is a poll timer that does not fire, so polls stay in their first state.
func never(time.Duration) <-chan time.Time { return nil }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	env := &testEnv{
		vendor: &fakeVendor{},
		backup: &fakeBackup{},
		prober: &fakeProber{results: map[string]model.ProbeResult{
			"acme":   {Reachable: true, HTTPStatus: 200, FinalURL: "http://acme.dev.example.com/auth/login_new"},
			"gone":   {Reason: model.ReasonRedirectedToMainSite, HTTPStatus: 200, FinalURL: "https://vendor.example.com/login"},
			"broken": {Reason: model.ReasonAPIError, HTTPStatus: 503},
		}},
	}
	res := residency.FromEntries(map[string]string{"resident": "db_resident"})
	env.store = pullstore.New(filepath.Join(t.TempDir(), "pulls.json"), logger)
	env.orch = validation.New(env.prober, validation.Options{}, logger)
	env.polls = poller.New(core.NewEnvironmentService(env.orch, res), poller.Options{After: never}, logger)
	t.Cleanup(env.polls.Stop)

	env.services = core.NewServices(core.Deps{
		Vendor:     env.vendor,
		Backup:     env.backup,
		Residency:  res,
		Timestamps: env.store,
		Validator:  env.orch,
		Polls:      env.polls,
		Logger:     logger,
	})
	return env
}

var errVendorDown = errors.New("vendor API: status 503")
