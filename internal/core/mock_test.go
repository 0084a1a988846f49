package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/pullstore"
)

// ---------- Mock vendor ----------

type mockVendor struct {
	mock.Mock
}

func (m *mockVendor) ListCustomers(ctx context.Context) ([]model.RawCustomer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawCustomer), args.Error(1)
}

// ---------- Mock backup ----------

type mockBackup struct {
	mock.Mock
}

func (m *mockBackup) Trigger(ctx context.Context, database string) (json.RawMessage, error) {
	args := m.Called(ctx, database)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// ---------- Mock timestamps ----------

type mockTimestamps struct {
	mock.Mock
}

func (m *mockTimestamps) Load() pullstore.Timestamps {
	args := m.Called()
	if args.Get(0) == nil {
		return pullstore.Timestamps{}
	}
	return args.Get(0).(pullstore.Timestamps)
}

func (m *mockTimestamps) Record(customerID int, at time.Time) (string, error) {
	args := m.Called(customerID, at)
	return args.String(0), args.Error(1)
}

// ---------- Mock validator ----------

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) RequestValidation(c model.Customer) bool {
	return m.Called(c).Bool(0)
}

func (m *mockValidator) Validate(ctx context.Context, domain string) model.ProbeResult {
	return m.Called(ctx, domain).Get(0).(model.ProbeResult)
}

func (m *mockValidator) Refresh(ctx context.Context, domain string) model.ProbeResult {
	return m.Called(ctx, domain).Get(0).(model.ProbeResult)
}

func (m *mockValidator) Invalidate(domain string) {
	m.Called(domain)
}

func (m *mockValidator) Entry(domain string) (model.ProbeResult, bool) {
	args := m.Called(domain)
	return args.Get(0).(model.ProbeResult), args.Bool(1)
}

func (m *mockValidator) Status(domain string) string {
	return m.Called(domain).String(0)
}

// ---------- Mock polls ----------

type mockPolls struct {
	mock.Mock
}

func (m *mockPolls) Start(c model.Customer) (model.PollState, bool) {
	args := m.Called(c)
	return args.Get(0).(model.PollState), args.Bool(1)
}

func (m *mockPolls) State(customerID int) (model.PollState, bool) {
	args := m.Called(customerID)
	return args.Get(0).(model.PollState), args.Bool(1)
}

func (m *mockPolls) Active(customerID int) bool {
	return m.Called(customerID).Bool(0)
}

// ---------- Helpers ----------

type staticResidency map[string]string

func (r staticResidency) Lookup(domain string) (string, bool) {
	db, ok := r[model.NormalizeDomain(domain)]
	return db, ok
}

func strPtr(s string) *string { return &s }
