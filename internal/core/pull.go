package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/envdash/internal/model"
)

var backupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "envdash_backup_requests_total",
	Help: "Backup pull requests sent to the backup service by result",
}, []string{"result"})

// BackupTrigger starts a backup pull for a database.
type BackupTrigger interface {
	Trigger(ctx context.Context, database string) (json.RawMessage, error)
}

type PullRequest struct {
	CustomerID      int
	Domain          string
	ResidentHosting bool
	ITARHosting     bool
}

type PullResult struct {
	Timestamp      string           `json:"timestamp,omitempty"`
	Database       string           `json:"database,omitempty"`
	Polling        bool             `json:"polling"`
	AlreadyPolling bool             `json:"already_polling"`
	Poll           *model.PollState `json:"poll,omitempty"`
	Backup         json.RawMessage  `json:"backup,omitempty"`
}

type PullService struct {
	backup     BackupTrigger
	timestamps TimestampStore
	residency  ResidencyLookup
	validator  Validator
	polls      PollTracker
	now        func() time.Time
	logger     zerolog.Logger
}

func NewPullService(
	backup BackupTrigger,
	timestamps TimestampStore,
	residency ResidencyLookup,
	validator Validator,
	polls PollTracker,
	logger zerolog.Logger,
) *PullService {
	return &PullService{
		backup:     backup,
		timestamps: timestamps,
		residency:  residency,
		validator:  validator,
		polls:      polls,
		now:        time.Now,
		logger:     logger.With().Str("component", "pull").Logger(),
	}
}

// Pull triggers a backup pull for the customer, records the pull time and
// starts watching the environment until it is stable. A customer whose
// environment is already being watched is left alone. If the backup request
// fails no poll is started.
func (s *PullService) Pull(ctx context.Context, req PullRequest) (*PullResult, error) {
	logger := s.logger.With().Int("customer_id", req.CustomerID).Str("domain", req.Domain).Logger()

	domain := model.NormalizeDomain(req.Domain)
	status, database := HostingStatus(req.Domain, req.ITARHosting, req.ResidentHosting, s.residency)
	switch status {
	case model.EnvITARHosting:
		return nil, fmt.Errorf("%w: customer %d is ITAR hosted", ErrForbidden, req.CustomerID)
	case model.EnvInvalidDomain:
		return nil, fmt.Errorf("%w: customer %d has no valid domain", ErrInvalidInput, req.CustomerID)
	case model.EnvUnavailable:
		return nil, fmt.Errorf("%w: no resident database mapped for %q", ErrInvalidInput, req.Domain)
	case model.EnvPendingValidation:
		database = domain
	}

	if s.polls.Active(req.CustomerID) {
		st, _ := s.polls.State(req.CustomerID)
		logger.Info().Msg("pull ignored, environment poll already running")
		return &PullResult{Polling: true, AlreadyPolling: true, Poll: &st}, nil
	}

	backup, err := s.backup.Trigger(ctx, database)
	if err != nil {
		backupRequests.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Str("database", database).Msg("backup request failed")
		return nil, fmt.Errorf("%w: backup request: %v", ErrUpstream, err)
	}
	backupRequests.WithLabelValues("success").Inc()

	res := &PullResult{
		Timestamp: s.Record(req.CustomerID),
		Database:  database,
		Backup:    backup,
	}

	// Resident-hosted environments are never probed, so there is nothing to watch.
	if status != model.EnvPendingValidation {
		logger.Info().Str("database", database).Msg("backup pull requested")
		return res, nil
	}

	s.validator.Invalidate(domain)
	st, _ := s.polls.Start(model.Customer{
		ID:              req.CustomerID,
		Domain:          domain,
		ResidentHosting: req.ResidentHosting,
		ITARHosting:     req.ITARHosting,
	})
	res.Polling = true
	res.Poll = &st

	logger.Info().Str("database", database).Str("poll_id", st.ID).Msg("backup pull requested")
	return res, nil
}

// Record stores the current time as the customer's last pull. A failed write
// is logged and the timestamp is still returned.
func (s *PullService) Record(customerID int) string {
	ts, err := s.timestamps.Record(customerID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Int("customer_id", customerID).Msg("failed to persist pull timestamp")
	}
	return ts
}

// PollState returns the most recent poll for the customer.
func (s *PullService) PollState(customerID int) (*model.PollState, error) {
	st, ok := s.polls.State(customerID)
	if !ok {
		return nil, fmt.Errorf("%w: no poll for customer %d", ErrNotFound, customerID)
	}
	return &st, nil
}
