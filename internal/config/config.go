// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the ledger database, authentication, payout accounts, IPFS
// pinning and streaming, caching, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "libchain-registry")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Authentication modes.
const (
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	Mode         string        // AUTH_MODE: header|jwt
	JWTSecret    string        // JWT_SECRET: signs sessions and stream URLs
	SessionTTL   time.Duration // SESSION_TTL
	ChallengeTTL time.Duration // CHALLENGE_TTL
	LoginDomain  string        // LOGIN_DOMAIN, shown in the signed message
}

// LedgerConfig holds payout and moderation parties.
type LedgerConfig struct {
	PlatformAccount string   // PLATFORM_ACCOUNT; empty means the zero address
	AdminAddresses  []string // ADMIN_ADDRESSES (CSV)
}

// StorageConfig configures IPFS pinning and the gateway.
type StorageConfig struct {
	PinataAPIURL    string        // PINATA_API_URL
	PinataAPIKey    string        // PINATA_API_KEY
	PinataSecret    string        // PINATA_SECRET_API_KEY (key secret or JWT)
	Gateway         string        // PINATA_GATEWAY
	UploadTimeout   time.Duration // PINATA_TIMEOUT
	GatewayTimeout  time.Duration // GATEWAY_TIMEOUT
	MaxUploadBytes  int64         // MAX_UPLOAD_BYTES
	StreamURLTTL    time.Duration // STREAM_URL_TTL
	StreamChunkSize int64         // STREAM_CHUNK_BYTES
}

// CacheConfig configures the listing cache.
type CacheConfig struct {
	Size          int           // CACHE_SIZE (entries, LRU only)
	TTL           time.Duration // CACHE_TTL
	RedisAddr     string        // REDIS_ADDR; empty selects the in-process LRU
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // JSON body cap (uploads use Storage.MaxUploadBytes)
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedact      bool   // scrub addresses and tokens from access logs
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	Auth    AuthConfig
	Ledger  LedgerConfig
	Storage StorageConfig
	Cache   CacheConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a purchase Idempotency-Key replays

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      getint64("MAX_BODY_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogRedact:      getbool("LOG_REDACT", true),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "registry.db"),

		Auth: AuthConfig{
			Mode:         strings.ToLower(strings.TrimSpace(getenv("AUTH_MODE", AuthModeHeader))),
			JWTSecret:    getenv("JWT_SECRET", ""),
			SessionTTL:   getdur("SESSION_TTL", 24*time.Hour),
			ChallengeTTL: getdur("CHALLENGE_TTL", 5*time.Minute),
			LoginDomain:  getenv("LOGIN_DOMAIN", "libchain-registry"),
		},
		Ledger: LedgerConfig{
			PlatformAccount: strings.TrimSpace(getenv("PLATFORM_ACCOUNT", "")),
			AdminAddresses:  splitCSV(getenv("ADMIN_ADDRESSES", "")),
		},
		Storage: StorageConfig{
			PinataAPIURL:    getenv("PINATA_API_URL", "https://api.pinata.cloud"),
			PinataAPIKey:    getenv("PINATA_API_KEY", ""),
			PinataSecret:    getenv("PINATA_SECRET_API_KEY", ""),
			Gateway:         getenv("PINATA_GATEWAY", "gateway.pinata.cloud"),
			UploadTimeout:   getdur("PINATA_TIMEOUT", 10*time.Minute),
			GatewayTimeout:  getdur("GATEWAY_TIMEOUT", 60*time.Second),
			MaxUploadBytes:  getint64("MAX_UPLOAD_BYTES", 512<<20),
			StreamURLTTL:    getdur("STREAM_URL_TTL", 5*time.Minute),
			StreamChunkSize: getint64("STREAM_CHUNK_BYTES", 2<<20),
		},
		Cache: CacheConfig{
			Size:          getint("CACHE_SIZE", 1024),
			TTL:           getdur("CACHE_TTL", 30*time.Second),
			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "libchain-registry"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	// WRITE_TIMEOUT may be 0: streams are long-lived.
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Auth.Mode {
	case AuthModeHeader:
	case AuthModeJWT:
		if cfg.Auth.JWTSecret == "" {
			return cfg, errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return cfg, errors.New("AUTH_MODE must be one of: header, jwt")
	}
	if cfg.Auth.SessionTTL <= 0 || cfg.Auth.ChallengeTTL <= 0 {
		return cfg, errors.New("SESSION_TTL and CHALLENGE_TTL must be > 0")
	}
	if a := cfg.Ledger.PlatformAccount; a != "" && !common.IsHexAddress(a) {
		return cfg, fmt.Errorf("PLATFORM_ACCOUNT %q is not a valid address", a)
	}
	for _, a := range cfg.Ledger.AdminAddresses {
		if !common.IsHexAddress(a) {
			return cfg, fmt.Errorf("ADMIN_ADDRESSES entry %q is not a valid address", a)
		}
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.Storage.StreamURLTTL <= 0 {
		return cfg, errors.New("STREAM_URL_TTL must be > 0")
	}
	if cfg.Storage.StreamChunkSize <= 0 {
		return cfg, errors.New("STREAM_CHUNK_BYTES must be > 0")
	}
	if cfg.Cache.Size < 0 || cfg.Cache.TTL < 0 {
		return cfg, errors.New("CACHE_SIZE and CACHE_TTL must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
