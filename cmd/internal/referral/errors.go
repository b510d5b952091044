package referral

import "errors"

var (
	ErrInvalidInput = errors.New("referral: invalid input")
	ErrCodeNotFound = errors.New("referral: code not found")
	ErrCodeTaken    = errors.New("referral: code already registered")
)

// IsCodeNotFound reports whether err represents ErrCodeNotFound.
func IsCodeNotFound(err error) bool { return errors.Is(err, ErrCodeNotFound) }
