package core

import (
	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/pullstore"
)

// ResidencyLookup resolves a resident-hosted domain to its database identifier.
type ResidencyLookup interface {
	Lookup(domain string) (string, bool)
}

// Summary holds dashboard counters computed during enrichment.
type Summary struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Resident    int `json:"resident"`
	ITAR        int `json:"itar"`
	Invalid     int `json:"invalid"`
	Unavailable int `json:"unavailable"`
}

type EnrichResult struct {
	Customers []model.Customer `json:"customers"`
	Summary   Summary          `json:"summary"`
}

// Enrich turns the vendor customer list into dashboard rows. It keeps vendor
// order, drops non-billable and excluded customers, classifies hosting and
// attaches the last pull time. It performs no I/O.
func Enrich(raw []model.RawCustomer, residency ResidencyLookup, timestamps pullstore.Timestamps, excluded map[int]bool) EnrichResult {
	res := EnrichResult{Customers: make([]model.Customer, 0, len(raw))}

	for _, r := range raw {
		if !bool(r.OKToBill) {
			continue
		}
		id := int(r.ID)
		if excluded[id] {
			continue
		}

		c := model.Customer{
			ID:              id,
			Name:            r.Name,
			Domain:          r.DomainValue(),
			PrioritySupport: bool(r.PrioritySupport),
			TestEnvironment: bool(r.TestEnvironment),
			ResidentHosting: bool(r.ResidentHosting),
			ITARHosting:     bool(r.ITARHosting),
			NumProdUsers:    int(r.NumProdUsers),
			NumFullUsers:    int(r.NumFullUsers),
		}
		c.EnvironmentStatus, c.ResidentDatabase = HostingStatus(c.Domain, c.ITARHosting, c.ResidentHosting, residency)
		if ts, ok := timestamps[id]; ok {
			v := ts
			c.LastPulledAt = &v
		}

		res.Customers = append(res.Customers, c)
		res.Summary.count(c.EnvironmentStatus)
	}
	return res
}

func (s *Summary) count(status string) {
	s.Total++
	switch status {
	case model.EnvPendingValidation:
		s.Pending++
	case model.EnvResidentHosting:
		s.Resident++
	case model.EnvITARHosting:
		s.ITAR++
	case model.EnvInvalidDomain:
		s.Invalid++
	case model.EnvUnavailable:
		s.Unavailable++
	}
}

// HostingStatus classifies a customer from its hosting flags alone. ITAR
// hosting wins over everything, including a missing domain. Standard-hosted
// customers with a domain come back as pending_validation, meaning a probe
// decides. For resident-hosted customers the mapped database is returned too.
func HostingStatus(domain string, itar, resident bool, residency ResidencyLookup) (string, string) {
	switch {
	case itar:
		return model.EnvITARHosting, ""
	case !model.HasValidDomain(domain):
		return model.EnvInvalidDomain, ""
	case resident:
		if residency != nil {
			if db, ok := residency.Lookup(domain); ok {
				return model.EnvResidentHosting, db
			}
		}
		return model.EnvUnavailable, ""
	default:
		return model.EnvPendingValidation, ""
	}
}
