package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrNoSecret is returned when a Service is constructed without a signing
	// secret. This is a configuration failure, not a verification failure.
	ErrNoSecret = errors.New("token signing secret missing")
)
