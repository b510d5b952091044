package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns a strong baseline for interactive logins.
// Values are intentionally conservative and can be overridden via env.
func DefaultParams() Params {
	// CPU-aware parallelism, clamped to [1..4] to keep resource usage
	// predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Params{
		MemoryKiB:   64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
		SaltLength:  16,
		KeyLength:   32,
	}
}

// FromEnv loads hashing parameters from environment variables.
//
// Env surface:
// - PORCHLIGHT_ARGON2_MEMORY_KIB
// - PORCHLIGHT_ARGON2_ITERATIONS
// - PORCHLIGHT_ARGON2_PARALLELISM
// - PORCHLIGHT_ARGON2_SALT_LEN
// - PORCHLIGHT_ARGON2_KEY_LEN
func FromEnv() (Params, error) {
	p := DefaultParams()

	if v, ok := os.LookupEnv("PORCHLIGHT_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_MEMORY_KIB: %w", err)
		}
		p.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("PORCHLIGHT_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_ITERATIONS: %w", err)
		}
		p.Iterations = u
	}

	if v, ok := os.LookupEnv("PORCHLIGHT_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_PARALLELISM: %w", err)
		}
		par, err := u32ToU8(u)
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_PARALLELISM: %w", err)
		}
		p.Parallelism = par
	}

	if v, ok := os.LookupEnv("PORCHLIGHT_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_SALT_LEN: %w", err)
		}
		p.SaltLength = u
	}

	if v, ok := os.LookupEnv("PORCHLIGHT_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Params{}, fmt.Errorf("PORCHLIGHT_ARGON2_KEY_LEN: %w", err)
		}
		p.KeyLength = u
	}

	return p, nil
}

func (p Params) valid() bool {
	return p.MemoryKiB >= 8*1024 &&
		p.Iterations >= 1 &&
		p.Parallelism >= 1 &&
		p.SaltLength >= 16 &&
		p.KeyLength >= 16
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	// Explicit overflow guard to satisfy static analyzers and future changes.
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}
