// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, secrets, guest-session
// limits, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig defines the chat-completion providers. The primary provider is
// tried first; on failure or timeout a single attempt goes to the fallback.
type LLMConfig struct {
	APIKey          string        // LLM_API_KEY
	Model           string        // LLM_MODEL
	BaseURL         string        // LLM_BASE_URL (empty = provider default)
	FallbackAPIKey  string        // LLM_FALLBACK_API_KEY
	FallbackModel   string        // LLM_FALLBACK_MODEL
	FallbackBaseURL string        // LLM_FALLBACK_BASE_URL
	Timeout         time.Duration // LLM_TIMEOUT per attempt
	HistoryTurns    int           // LLM_HISTORY_TURNS: prior turns sent as context
}

// GuestConfig bounds anonymous sessions: BufferCap bounds the recent-message
// buffer memory, MessageLimit bounds free usage before the registration
// prompt. The two caps are independent.
type GuestConfig struct {
	BufferCap    int           // GUEST_BUFFER_CAP
	MessageLimit int           // GUEST_MESSAGE_LIMIT
	SessionTTL   time.Duration // GUEST_SESSION_TTL
	RedisAddr    string        // GUEST_REDIS_ADDR (empty = in-memory store)
	RedisDB      int           // GUEST_REDIS_DB
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath      string        // SQLite path
	HistoryCap  int           // stored messages per (user, persona)
	AdminToken  string        // bearer token for /admin routes
	TokenSecret string        // HMAC secret for capability tokens
	TokenTTL    time.Duration // capability token lifetime
	CookieTTL   time.Duration // login cookie lifetime

	Guest GuestConfig
	LLM   LLMConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// App
		DBPath:      getenv("DB_PATH", "app.db"),
		HistoryCap:  getint("HISTORY_CAP", 100),
		AdminToken:  getenv("ADMIN_TOKEN", ""),
		TokenSecret: getenv("TOKEN_SECRET", ""),
		TokenTTL:    getdur("TOKEN_TTL", 30*24*time.Hour),
		CookieTTL:   getdur("COOKIE_TTL", 24*time.Hour),

		Guest: GuestConfig{
			BufferCap:    getint("GUEST_BUFFER_CAP", 16),
			MessageLimit: getint("GUEST_MESSAGE_LIMIT", 10),
			SessionTTL:   getdur("GUEST_SESSION_TTL", 12*time.Hour),
			RedisAddr:    getenv("GUEST_REDIS_ADDR", ""),
			RedisDB:      getint("GUEST_REDIS_DB", 0),
		},

		LLM: LLMConfig{
			APIKey:          getenv("LLM_API_KEY", ""),
			Model:           getenv("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:         getenv("LLM_BASE_URL", ""),
			FallbackAPIKey:  getenv("LLM_FALLBACK_API_KEY", ""),
			FallbackModel:   getenv("LLM_FALLBACK_MODEL", "gpt-4o-mini"),
			FallbackBaseURL: getenv("LLM_FALLBACK_BASE_URL", ""),
			Timeout:         getdur("LLM_TIMEOUT", 15*time.Second),
			HistoryTurns:    getint("LLM_HISTORY_TURNS", 20),
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
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-fortune-backend"),
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
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.HistoryCap < 1 {
		return cfg, errors.New("HISTORY_CAP must be >= 1")
	}
	if cfg.TokenTTL <= 0 || cfg.CookieTTL <= 0 {
		return cfg, errors.New("TOKEN_TTL and COOKIE_TTL must be > 0")
	}
	if cfg.Guest.BufferCap < 1 {
		return cfg, errors.New("GUEST_BUFFER_CAP must be >= 1")
	}
	if cfg.Guest.MessageLimit < 1 {
		return cfg, errors.New("GUEST_MESSAGE_LIMIT must be >= 1")
	}
	if cfg.Guest.SessionTTL <= 0 {
		return cfg, errors.New("GUEST_SESSION_TTL must be > 0")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.LLM.HistoryTurns < 0 {
		return cfg, errors.New("LLM_HISTORY_TURNS must be >= 0")
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

// ---- helpers (no external deps) ----

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
