// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, authentication, upstream provider
// endpoints, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-chat-gateway/internal/sysutil"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig defines bearer-token authentication settings.
type AuthConfig struct {
	JWTSecret string // AUTH_JWT_SECRET (HS256 signing key)
}

// ProviderConfig defines the upstream chat provider settings.
//
// Simulated selects the offline providers (deterministic general replies,
// local retrieval-backed grounding) instead of the live HTTP ones; it is the
// default so the gateway runs without upstream credentials.
type ProviderConfig struct {
	Simulated bool // PROVIDER_SIMULATED

	// Token service (client credentials), live providers only.
	TokenAuthURL      string        // PROVIDER_TOKEN_URL
	TokenClientID     string        // PROVIDER_CLIENT_ID
	TokenClientSecret string        // PROVIDER_CLIENT_SECRET
	TokenTimeout      time.Duration // PROVIDER_TOKEN_TIMEOUT

	// General chat upstream.
	GeneralURLStaging    string        // GENERAL_URL_STAGING
	GeneralURLProduction string        // GENERAL_URL_PRODUCTION
	GeneralEnvironment   string        // GENERAL_ENVIRONMENT (staging|production)
	GeneralScope         string        // GENERAL_TOKEN_SCOPE
	GeneralDomain        string        // GENERAL_DOMAIN_NAME
	GeneralModel         string        // GENERAL_MODEL_NAME
	GeneralMaxTokens     int           // GENERAL_MAX_TOKENS
	GeneralTimeout       time.Duration // GENERAL_TIMEOUT

	// Grounded chat upstream.
	GroundedURLStaging    string        // GROUNDED_URL_STAGING
	GroundedURLProduction string        // GROUNDED_URL_PRODUCTION
	GroundedScope         string        // GROUNDED_TOKEN_SCOPE
	GroundedTimeout       time.Duration // GROUNDED_TIMEOUT

	// Simulated grounding corpus (markdown knowledge file).
	KnowledgePath string // KNOWLEDGE_PATH
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s; must exceed grounded timeout for SSE
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath       string // SQLite path
	SeedDemoData bool   // create demo users/roles/configurations on boot

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Identity and upstreams
	Auth     AuthConfig
	Provider ProviderConfig

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
		// SSE responses stay open for the whole generation.
		WriteTimeout:   getdur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:    getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:        strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:       getenv("DB_PATH", "gateway.db"),
		SeedDemoData: getbool("SEED_DEMO_DATA", false),

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

		// Identity
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET", ""),
		},

		// Upstreams
		Provider: ProviderConfig{
			Simulated: getbool("PROVIDER_SIMULATED", true),

			TokenAuthURL:      getenv("PROVIDER_TOKEN_URL", ""),
			TokenClientID:     getenv("PROVIDER_CLIENT_ID", ""),
			TokenClientSecret: getenv("PROVIDER_CLIENT_SECRET", ""),
			TokenTimeout:      getdur("PROVIDER_TOKEN_TIMEOUT", 30*time.Second),

			GeneralURLStaging:    getenv("GENERAL_URL_STAGING", ""),
			GeneralURLProduction: getenv("GENERAL_URL_PRODUCTION", ""),
			GeneralEnvironment:   strings.ToLower(getenv("GENERAL_ENVIRONMENT", "staging")),
			GeneralScope:         getenv("GENERAL_TOKEN_SCOPE", ""),
			GeneralDomain:        getenv("GENERAL_DOMAIN_NAME", ""),
			GeneralModel:         getenv("GENERAL_MODEL_NAME", ""),
			GeneralMaxTokens:     getint("GENERAL_MAX_TOKENS", 1024),
			GeneralTimeout:       getdur("GENERAL_TIMEOUT", 60*time.Second),

			GroundedURLStaging:    getenv("GROUNDED_URL_STAGING", ""),
			GroundedURLProduction: getenv("GROUNDED_URL_PRODUCTION", ""),
			GroundedScope:         getenv("GROUNDED_TOKEN_SCOPE", ""),
			GroundedTimeout:       getdur("GROUNDED_TIMEOUT", 120*time.Second),

			KnowledgePath: getenv("KNOWLEDGE_PATH", "data/knowledge.md"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-gateway"),
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
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("AUTH_JWT_SECRET must not be empty")
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
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	switch cfg.Provider.GeneralEnvironment {
	case "staging", "production":
	default:
		return cfg, errors.New("GENERAL_ENVIRONMENT must be staging or production")
	}
	if !cfg.Provider.Simulated {
		if strings.TrimSpace(cfg.Provider.TokenAuthURL) == "" ||
			strings.TrimSpace(cfg.Provider.TokenClientID) == "" ||
			strings.TrimSpace(cfg.Provider.TokenClientSecret) == "" {
			return cfg, errors.New("live providers require PROVIDER_TOKEN_URL, PROVIDER_CLIENT_ID and PROVIDER_CLIENT_SECRET")
		}
		if strings.TrimSpace(cfg.Provider.GeneralURLStaging) == "" &&
			strings.TrimSpace(cfg.Provider.GeneralURLProduction) == "" {
			return cfg, errors.New("live providers require a general upstream URL")
		}
		if strings.TrimSpace(cfg.Provider.GroundedURLStaging) == "" &&
			strings.TrimSpace(cfg.Provider.GroundedURLProduction) == "" {
			return cfg, errors.New("live providers require a grounded upstream URL")
		}
	}
	if cfg.Provider.Simulated && strings.TrimSpace(cfg.Provider.KnowledgePath) == "" {
		return cfg, errors.New("KNOWLEDGE_PATH must not be empty when PROVIDER_SIMULATED is set")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	return sysutil.FirstNonEmpty(os.Getenv(k), def)
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
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
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
