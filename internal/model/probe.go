package model

import "time"

// ProbeResult is the outcome of a single environment probe. It is also the
// validation cache entry for a domain.
type ProbeResult struct {
	Domain     string    `json:"domain"`
	Reachable  bool      `json:"reachable"`
	HTTPStatus int       `json:"status,omitempty"`
	FinalURL   string    `json:"finalUrl,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// ValidationStatus maps a probe result to its validation status.
func (r ProbeResult) ValidationStatus() string {
	if r.Reachable {
		return ValidationValid
	}
	switch r.Reason {
	case ReasonRedirectedToMainSite:
		return ValidationRedirected
	case ReasonAPIError:
		return ValidationError
	default:
		return ValidationInvalid
	}
}

// EnvironmentStatus maps a probe result to the environment status shown for a
// standard-hosted customer.
func (r ProbeResult) EnvironmentStatus() string {
	if r.Reachable {
		return EnvReady
	}
	if r.Reason == ReasonAPIError {
		return EnvUnavailable
	}
	return EnvNotReady
}
