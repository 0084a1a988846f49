package model

// Environment status constants. Every customer row carries exactly one.
const (
	EnvPendingValidation = "pending_validation"
	EnvReady             = "ready"
	EnvNotReady          = "not_ready"
	EnvResidentHosting   = "resident_hosting"
	EnvITARHosting       = "itar_hosting"
	EnvUnavailable       = "unavailable"
	EnvInvalidDomain     = "invalid_domain"
)

// Validation status constants, as reported for a domain by the validation cache.
const (
	ValidationPending    = "pending"
	ValidationValid      = "valid"
	ValidationInvalid    = "invalid"
	ValidationRedirected = "redirected"
	ValidationError      = "error"
)

// Probe failure reasons.
const (
	ReasonRedirectedToMainSite = "redirected_to_main_site"
	ReasonNetworkError         = "network_error"
	ReasonAPIError             = "api_error"
)

// Poll phases.
const (
	PollPolling  = "polling"
	PollStable   = "stable"
	PollTimedOut = "timed_out"
)
