// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database URL, admin credentials, the language model provider
// and observability settings.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tbourn/review-insights-backend/internal/sysutil"
)

// Supported LLM_PROVIDER values.
const (
	ProviderMock   = "mock"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// DevJWTSecret is used when neither SECRET_KEY nor JWT_SECRET is set.
const DevJWTSecret = "dev-secret-change-me"

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// AdminConfig holds the single admin account and token settings.
type AdminConfig struct {
	Username     string        // ADMIN_USERNAME
	Password     string        // ADMIN_PASSWORD (plain, hashed at startup)
	PasswordHash string        // ADMIN_PASSWORD_HASH (bcrypt, preferred)
	JWTSecret    string        // SECRET_KEY or JWT_SECRET
	TokenTTL     time.Duration // JWT_EXPIRE_MINUTES
}

// LLMConfig selects and tunes the text-generation provider.
type LLMConfig struct {
	Provider       string        // LLM_PROVIDER: mock|groq|openai|vertex
	APIKey         string        // resolved per provider
	Model          string        // LLM_MODEL
	BaseURL        string        // LLM_BASE_URL (OpenAI-compatible providers)
	Timeout        time.Duration // LLM_TIMEOUT_SECONDS, per attempt
	MaxRetries     int           // LLM_MAX_RETRIES, transient failures only
	Temperature    float64       // LLM_TEMPERATURE
	MaxTokens      int           // LLM_MAX_TOKENS, 0 = provider default
	VertexProject  string        // VERTEX_PROJECT
	VertexLocation string        // VERTEX_LOCATION
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
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
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	GzipEnabled    bool   // gzip responses
	APIBasePath    string // base path for API routes

	// App
	DatabaseURL       string        // sqlite://path, postgres://..., mysql://...
	MaxReviewChars    int           // reviews are truncated to this many runes
	ProcessingTimeout time.Duration // upper bound for one background processing run

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	Admin AdminConfig
	LLM   LLMConfig

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

// Load reads configuration from the environment, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	e := newSource()

	cfg := Config{
		// Server
		Port:              e.getString("PORT", "8080"),
		ReadTimeout:       e.getDur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.getDur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.getDur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.getDur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.getInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.getString("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(e.getString("LOG_LEVEL", "info")),
		LogPretty:      e.getBool("LOG_PRETTY", false),
		SwaggerEnabled: e.getBool("SWAGGER_ENABLED", false),
		GzipEnabled:    e.getBool("GZIP_ENABLED", true),
		APIBasePath:    normalizeBasePath(e.getString("API_BASE_PATH", "/api")),

		// App
		DatabaseURL:       strings.TrimSpace(e.getString("DATABASE_URL", "sqlite://app.db")),
		MaxReviewChars:    e.getInt("MAX_REVIEW_CHARS", 4000),
		ProcessingTimeout: e.getDur("PROCESSING_TIMEOUT", 2*time.Minute),

		// Rate limiting
		RateRPS:   e.getFloat("RATE_RPS", 5.0),
		RateBurst: e.getInt("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(sysutil.FirstNonEmpty(
				e.getString("CORS_ORIGINS", ""),
				e.getString("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
			)),
		},
		Security: SecurityConfig{
			EnableHSTS: e.getBool("ENABLE_HSTS", false),
			HSTSMaxAge: e.getDur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: e.getDur("IDEMPOTENCY_TTL", 24*time.Hour),

		Admin: AdminConfig{
			Username:     strings.TrimSpace(e.getString("ADMIN_USERNAME", "")),
			Password:     e.getString("ADMIN_PASSWORD", ""),
			PasswordHash: strings.TrimSpace(e.getString("ADMIN_PASSWORD_HASH", "")),
			JWTSecret:    sysutil.FirstNonEmpty(e.getString("SECRET_KEY", ""), e.getString("JWT_SECRET", ""), DevJWTSecret),
			TokenTTL:     time.Duration(e.getInt("JWT_EXPIRE_MINUTES", 1440)) * time.Minute,
		},

		LLM: LLMConfig{
			Provider:       strings.ToLower(strings.TrimSpace(e.getString("LLM_PROVIDER", ProviderMock))),
			Model:          strings.TrimSpace(e.getString("LLM_MODEL", "")),
			BaseURL:        strings.TrimSpace(e.getString("LLM_BASE_URL", "")),
			Timeout:        time.Duration(e.getInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
			MaxRetries:     e.getInt("LLM_MAX_RETRIES", 2),
			Temperature:    e.getFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:      e.getInt("LLM_MAX_TOKENS", 0),
			VertexProject:  strings.TrimSpace(e.getString("VERTEX_PROJECT", "")),
			VertexLocation: strings.TrimSpace(e.getString("VERTEX_LOCATION", "us-central1")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     e.getBool("OTEL_ENABLED", false),
			Endpoint:    e.getString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.getString("OTEL_SERVICE_NAME", "review-insights-backend"),
			SampleRatio: e.getFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
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
	resolveLLM(&cfg.LLM, e)

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
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL must not be empty")
	}
	if cfg.MaxReviewChars <= 0 {
		return cfg, errors.New("MAX_REVIEW_CHARS must be > 0")
	}
	if cfg.ProcessingTimeout <= 0 {
		return cfg, errors.New("PROCESSING_TIMEOUT must be > 0")
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
	if cfg.Admin.Username == "" {
		return cfg, errors.New("ADMIN_USERNAME must not be empty")
	}
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		return cfg, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	if cfg.Admin.TokenTTL <= 0 {
		return cfg, errors.New("JWT_EXPIRE_MINUTES must be > 0")
	}
	if err := validateLLM(cfg.LLM); err != nil {
		return cfg, err
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// resolveLLM fills the provider-dependent key, model and base URL.
func resolveLLM(l *LLMConfig, e source) {
	generic := e.getString("LLM_API_KEY", "")
	switch l.Provider {
	case ProviderGroq:
		l.APIKey = sysutil.FirstNonEmpty(e.getString("GROQ_API_KEY", ""), generic)
		l.Model = sysutil.FirstNonEmpty(l.Model, "llama-3.3-70b-versatile")
		l.BaseURL = sysutil.FirstNonEmpty(l.BaseURL, "https://api.groq.com/openai/v1")
	case ProviderOpenAI:
		l.APIKey = sysutil.FirstNonEmpty(e.getString("OPENAI_API_KEY", ""), generic)
		l.Model = sysutil.FirstNonEmpty(l.Model, "gpt-4o-mini")
		l.BaseURL = sysutil.FirstNonEmpty(l.BaseURL, "https://api.openai.com/v1")
	case ProviderVertex:
		l.Model = sysutil.FirstNonEmpty(l.Model, "gemini-1.5-flash")
	case ProviderMock:
		l.Model = sysutil.FirstNonEmpty(l.Model, "mock-1")
	}
	l.APIKey = strings.TrimSpace(l.APIKey)
	l.BaseURL = strings.TrimRight(l.BaseURL, "/")
}

func validateLLM(l LLMConfig) error {
	switch l.Provider {
	case ProviderMock:
	case ProviderGroq:
		if l.APIKey == "" {
			return errors.New("GROQ_API_KEY or LLM_API_KEY must be set when LLM_PROVIDER=groq")
		}
	case ProviderOpenAI:
		if l.APIKey == "" {
			return errors.New("OPENAI_API_KEY or LLM_API_KEY must be set when LLM_PROVIDER=openai")
		}
	case ProviderVertex:
		if l.VertexProject == "" || l.VertexLocation == "" {
			return errors.New("VERTEX_PROJECT and VERTEX_LOCATION must be set when LLM_PROVIDER=vertex")
		}
	default:
		return errors.New("LLM_PROVIDER must be one of: mock, groq, openai, vertex")
	}
	if l.Timeout <= 0 {
		return errors.New("LLM_TIMEOUT_SECONDS must be > 0")
	}
	if l.MaxRetries < 0 || l.MaxRetries > 10 {
		return errors.New("LLM_MAX_RETRIES must be in [0,10]")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if l.MaxTokens < 0 {
		return errors.New("LLM_MAX_TOKENS must be >= 0")
	}
	return nil
}

// ---- helpers ----

// source reads raw values through viper's environment binding. Typed values
// that fail to parse fall back to their default.
type source struct{ v *viper.Viper }

func newSource() source {
	v := viper.New()
	v.AutomaticEnv()
	return source{v: v}
}

func (s source) getString(k, def string) string {
	if v := s.v.GetString(k); v != "" {
		return v
	}
	return def
}

func (s source) getFloat(k string, def float64) float64 {
	if v := s.v.GetString(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getInt(k string, def int) int {
	if v := s.v.GetString(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (s source) getBool(k string, def bool) bool {
	if v := s.v.GetString(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) getDur(k string, def time.Duration) time.Duration {
	if v := s.v.GetString(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
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
