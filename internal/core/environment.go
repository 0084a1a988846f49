package core

import (
	"context"

	"github.com/edvin/envdash/internal/model"
)

// Validator is the validation cache as seen by the services.
type Validator interface {
	RequestValidation(c model.Customer) bool
	Validate(ctx context.Context, domain string) model.ProbeResult
	Refresh(ctx context.Context, domain string) model.ProbeResult
	Invalidate(domain string)
	Entry(domain string) (model.ProbeResult, bool)
	Status(domain string) string
}

// EnvironmentRequest identifies the environment to classify.
type EnvironmentRequest struct {
	CustomerID      int
	Domain          string
	ResidentHosting bool
	ITARHosting     bool
}

type EnvironmentService struct {
	validator Validator
	residency ResidencyLookup
}

func NewEnvironmentService(validator Validator, residency ResidencyLookup) *EnvironmentService {
	return &EnvironmentService{validator: validator, residency: residency}
}

// Classify returns the environment status for a customer, short-circuiting on
// hosting type and otherwise running a live probe.
func (s *EnvironmentService) Classify(ctx context.Context, req EnvironmentRequest) string {
	status, _ := HostingStatus(req.Domain, req.ITARHosting, req.ResidentHosting, s.residency)
	if status != model.EnvPendingValidation {
		return status
	}
	return s.validator.Refresh(ctx, req.Domain).EnvironmentStatus()
}

// ProbeLink runs a live probe for domain without any hosting short-circuit.
func (s *EnvironmentService) ProbeLink(ctx context.Context, domain string) model.ProbeResult {
	return s.validator.Refresh(ctx, domain)
}

// Lookup returns the cached validation state for domain.
func (s *EnvironmentService) Lookup(domain string) (string, *model.ProbeResult) {
	if r, ok := s.validator.Entry(domain); ok {
		return r.ValidationStatus(), &r
	}
	return model.ValidationPending, nil
}

// Check implements the poller's checker.
func (s *EnvironmentService) Check(ctx context.Context, c model.Customer) (string, error) {
	status := s.Classify(ctx, EnvironmentRequest{
		CustomerID:      c.ID,
		Domain:          c.Domain,
		ResidentHosting: c.ResidentHosting,
		ITARHosting:     c.ITARHosting,
	})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return status, nil
}
