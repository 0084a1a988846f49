package core

import "github.com/rs/zerolog"

// Deps are the collaborators the services are built from.
type Deps struct {
	Vendor      CustomerLister
	Backup      BackupTrigger
	Residency   ResidencyLookup
	Timestamps  TimestampStore
	Validator   Validator
	Polls       PollTracker
	ExcludedIDs []int
	Logger      zerolog.Logger
}

type Services struct {
	Customer    *CustomerService
	Environment *EnvironmentService
	Pull        *PullService
}

func NewServices(d Deps) *Services {
	return &Services{
		Customer:    NewCustomerService(d.Vendor, d.Residency, d.Timestamps, d.Validator, d.Polls, d.ExcludedIDs, d.Logger),
		Environment: NewEnvironmentService(d.Validator, d.Residency),
		Pull:        NewPullService(d.Backup, d.Timestamps, d.Residency, d.Validator, d.Polls, d.Logger),
	}
}
