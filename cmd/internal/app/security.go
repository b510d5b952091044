package app

import "errors"

const minSessionSecretBytes = 32

var (
	ErrSessionSecretMissing  = errors.New("security policy: PORCHLIGHT_SESSION_SECRET is not set")
	ErrSessionSecretTooShort = errors.New("security policy: PORCHLIGHT_SESSION_SECRET is too short (min 32 bytes)")
)

// ValidateSecurityConfig enforces the startup security policy.
// A missing or weak signing secret is fatal: falling back to unsigned
// or weakly signed sessions is not an acceptable degraded mode.
func ValidateSecurityConfig(cfg Config) error {
	// Bytes, not runes: the secret is fed to HMAC as raw bytes.
	switch {
	case len(cfg.SessionSecret) == 0:
		return ErrSessionSecretMissing
	case len(cfg.SessionSecret) < minSessionSecretBytes:
		return ErrSessionSecretTooShort
	}
	return nil
}
