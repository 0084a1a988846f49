package model

import "strings"

// RawCustomer is a customer record as returned by the vendor customer API.
type RawCustomer struct {
	ID              CustomerID `json:"id"`
	Name            string     `json:"name"`
	Domain          *string    `json:"domain"`
	OKToBill        Flag       `json:"ok_to_bill"`
	PrioritySupport Flag       `json:"priority_support"`
	ResidentHosting Flag       `json:"resident_hosting"`
	TestEnvironment Flag       `json:"test_environment"`
	ITARHosting     Flag       `json:"itar_hosting_bc"`
	NumProdUsers    Count      `json:"num_prod_users"`
	NumFullUsers    Count      `json:"num_full_users"`
	TechXPassword   string     `json:"techx_password"`
}

// DomainValue returns the domain trimmed of whitespace, or "" when absent.
func (r RawCustomer) DomainValue() string {
	if r.Domain == nil {
		return ""
	}
	return strings.TrimSpace(*r.Domain)
}

// Customer is an enriched dashboard row.
type Customer struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Domain            string     `json:"domain"`
	PrioritySupport   bool       `json:"priority_support"`
	TestEnvironment   bool       `json:"test_environment"`
	ResidentHosting   bool       `json:"resident_hosting"`
	ITARHosting       bool       `json:"itar_hosting"`
	NumProdUsers      int        `json:"num_prod_users"`
	NumFullUsers      int        `json:"num_full_users"`
	ResidentDatabase  string     `json:"resident_database,omitempty"`
	EnvironmentStatus string     `json:"environment_status"`
	ValidationStatus  string     `json:"validation_status,omitempty"`
	Poll              *PollState `json:"poll,omitempty"`
	LastPulledAt      *string    `json:"last_pulled_at"`
}

// HasValidDomain reports whether domain names a real environment. Empty,
// whitespace-only and placeholder values do not.
func HasValidDomain(domain string) bool {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case "", "undefined", "null":
		return false
	}
	return true
}

// NormalizeDomain lowercases and trims a domain for use as a lookup key.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
