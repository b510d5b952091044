package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const scheme = "argon2id"

// Hash hashes a password using Argon2id and returns an encoded hash string.
// Format:
// argon2id:m=<mem>,t=<iter>,p=<par>:<salt_b64url>:<key_b64url>
func (p Params) Hash(password string) (string, error) {
	if !p.valid() {
		return "", ErrInvalidParams
	}

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		p.Iterations,
		p.MemoryKiB,
		p.Parallelism,
		p.KeyLength,
	)

	b64 := base64.RawURLEncoding
	enc := fmt.Sprintf(
		"%s:m=%d,t=%d,p=%d:%s:%s",
		scheme,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)

	return enc, nil
}

// Verify reports whether password matches the given encoded hash.
// It re-derives the key with the parameters and salt embedded in the hash and
// compares in constant time. Malformed hashes, unknown schemes, and mismatches
// are all indistinguishable: the result is simply false.
func (p Params) Verify(encoded, password string) bool {
	params, salt, expected, ok := decode(encoded)
	if !ok {
		return false
	}

	// Anti-DoS boundary: refuse to verify if embedded params exceed our
	// configured maximums by a large margin (prevents attacker-controlled
	// hash strings from causing pathological resource usage).
	if !withinReasonableBounds(params, p) {
		return false
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by decode(); safe conversion.
	)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

func withinReasonableBounds(got Params, limits Params) bool {
	// Allow verifying hashes generated with older/smaller settings,
	// but reject wildly larger settings.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses the encoded hash and returns params, salt and expected key.
func decode(encoded string) (Params, []byte, []byte, bool) {
	// Expected:
	// argon2id:m=65536,t=3,p=2:<salt>:<key>
	parts := strings.Split(encoded, ":")
	if len(parts) != 4 || parts[0] != scheme {
		return Params{}, nil, nil, false
	}

	if !strings.HasPrefix(parts[1], "m=") {
		return Params{}, nil, nil, false
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[1], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, false
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, false
	}

	b64 := base64.RawURLEncoding
	salt, err := b64.DecodeString(parts[2])
	if err != nil {
		return Params{}, nil, nil, false
	}
	key, err := b64.DecodeString(parts[3])
	if err != nil {
		return Params{}, nil, nil, false
	}

	params := Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par), // #nosec G115 -- par is bounded above; safe conversion.
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}

	return params, salt, key, true
}
