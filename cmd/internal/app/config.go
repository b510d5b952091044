package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Account store selection: REST wins over Postgres, and with
	// neither configured the app runs on the in-memory dev store.
	RESTURL    string
	RESTAPIKey string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisAddr string

	// SessionSecret signs every session token. Required, min 32 bytes.
	SessionSecret string

	// If true, /readyz returns 503 unless a persistent store is
	// configured and reachable.
	ReadinessRequireStore bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PORCHLIGHT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PORCHLIGHT_LOG_LEVEL", "info"),
		LogFormat: EnvString("PORCHLIGHT_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PORCHLIGHT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PORCHLIGHT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PORCHLIGHT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PORCHLIGHT_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PORCHLIGHT_HTTP_MAX_HEADER_BYTES", 1<<20),

		RESTURL:    EnvString("PORCHLIGHT_REST_URL", ""),
		RESTAPIKey: EnvString("PORCHLIGHT_REST_API_KEY", ""),

		DatabaseURL: EnvString("PORCHLIGHT_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PORCHLIGHT_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PORCHLIGHT_DB_MIN_CONNS", 0),

		RedisAddr: EnvString("PORCHLIGHT_REDIS_ADDR", ""),

		SessionSecret: EnvString("PORCHLIGHT_SESSION_SECRET", ""),

		ReadinessRequireStore: EnvBool("PORCHLIGHT_READINESS_REQUIRE_STORE", false),
	}
}
