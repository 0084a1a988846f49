package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/pullstore"
)

// CustomerLister fetches the raw vendor customer list.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]model.RawCustomer, error)
}

// TimestampStore persists last pull times.
type TimestampStore interface {
	Load() pullstore.Timestamps
	Record(customerID int, at time.Time) (string, error)
}

// PollTracker runs post-pull environment polls.
type PollTracker interface {
	Start(c model.Customer) (model.PollState, bool)
	State(customerID int) (model.PollState, bool)
	Active(customerID int) bool
}

type CustomerService struct {
	vendor     CustomerLister
	residency  ResidencyLookup
	timestamps TimestampStore
	validator  Validator
	polls      PollTracker
	excluded   map[int]bool
	logger     zerolog.Logger
}

func NewCustomerService(
	vendor CustomerLister,
	residency ResidencyLookup,
	timestamps TimestampStore,
	validator Validator,
	polls PollTracker,
	excludedIDs []int,
	logger zerolog.Logger,
) *CustomerService {
	excluded := make(map[int]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	return &CustomerService{
		vendor:     vendor,
		residency:  residency,
		timestamps: timestamps,
		validator:  validator,
		polls:      polls,
		excluded:   excluded,
		logger:     logger.With().Str("component", "customers").Logger(),
	}
}

// List fetches and enriches the customer list, then overlays the current
// validation and poll state. Customers still waiting for a probe are queued
// for validation.
func (s *CustomerService) List(ctx context.Context) (*EnrichResult, error) {
	var (
		raw        []model.RawCustomer
		timestamps pullstore.Timestamps
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = s.vendor.ListCustomers(gctx)
		if err != nil {
			return fmt.Errorf("%w: fetch customers: %v", ErrUpstream, err)
		}
		return nil
	})
	g.Go(func() error {
		timestamps = s.timestamps.Load()
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("customer list failed")
		return nil, err
	}

	res := Enrich(raw, s.residency, timestamps, s.excluded)

	queued := 0
	for i := range res.Customers {
		if s.overlay(&res.Customers[i]) {
			queued++
		}
	}
	s.logger.Debug().
		Int("customers", res.Summary.Total).
		Int("pending", res.Summary.Pending).
		Int("queued", queued).
		Msg("customer list enriched")

	return &res, nil
}

// overlay applies live validation and poll state to a row and reports whether
// a validation was queued for it.
func (s *CustomerService) overlay(c *model.Customer) bool {
	if st, ok := s.polls.State(c.ID); ok {
		c.Poll = &st
	}
	if c.EnvironmentStatus != model.EnvPendingValidation {
		return false
	}

	// While a poll runs the environment may be torn down and recreated, so
	// ready is only surfaced once the poll is stable.
	if c.Poll != nil && c.Poll.Phase == model.PollPolling {
		c.ValidationStatus = model.ValidationPending
		if c.Poll.LastStatus == model.EnvUnavailable {
			c.EnvironmentStatus = model.EnvUnavailable
		} else {
			c.EnvironmentStatus = model.EnvNotReady
		}
		return false
	}

	c.ValidationStatus = s.validator.Status(c.Domain)
	switch c.ValidationStatus {
	case model.ValidationValid:
		c.EnvironmentStatus = model.EnvReady
	case model.ValidationInvalid, model.ValidationRedirected:
		c.EnvironmentStatus = model.EnvNotReady
	case model.ValidationError:
		c.EnvironmentStatus = model.EnvUnavailable
	default:
		return s.validator.RequestValidation(*c)
	}
	return false
}
