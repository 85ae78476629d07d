package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound       = errors.New("domain: not found")
	ErrMalformedEvent = errors.New("domain: malformed event")
	ErrUnknownEvent   = errors.New("domain: unknown event type")
)
