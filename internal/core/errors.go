package core

import "errors"

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream request failed")
)
