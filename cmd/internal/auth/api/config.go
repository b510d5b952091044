package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	SessionTTL        time.Duration
	MinPasswordLength int

	LoginIPMax            int
	LoginIPWindow         time.Duration
	LoginIdentifierMax    int
	LoginIdentifierWindow time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:            envBool("PORCHLIGHT_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:          envInt64("PORCHLIGHT_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		SessionTTL:            envDuration("PORCHLIGHT_SESSION_TTL", 24*time.Hour),
		MinPasswordLength:     envInt("PORCHLIGHT_AUTH_MIN_PASSWORD_LENGTH", 8),
		LoginIPMax:            envInt("PORCHLIGHT_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:         envDuration("PORCHLIGHT_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		LoginIdentifierMax:    envInt("PORCHLIGHT_AUTH_LOGIN_IDENTIFIER_MAX", 5),
		LoginIdentifierWindow: envDuration("PORCHLIGHT_AUTH_LOGIN_IDENTIFIER_WINDOW", 15*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = 20
	}
	if cfg.LoginIdentifierMax <= 0 {
		cfg.LoginIdentifierMax = 5
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
