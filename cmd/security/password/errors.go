package password

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidParams = errors.New("invalid argon2id parameters")
)
