package account

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream_failure")
)

// OpError is a typed operation error with a stable Op + Kind contract for
// callers and tests. Kind must be one of the sentinel kinds; Msg may carry
// human-readable context and must never include secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// UpstreamError reports that the external store misbehaved: unreachable, or
// an unexpected status. Status is zero for transport-level failures.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %v: status %d", e.Op, ErrUpstream, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrUpstream, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, ErrUpstream)
	}
}

func (e UpstreamError) Unwrap() error { return ErrUpstream }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUpstream reports whether err represents ErrUpstream.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstream) }
