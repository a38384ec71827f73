package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Ledger store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	RazorpayTimeout       time.Duration
	DefaultCurrency       string

	SupabaseJWTSecret   string
	SupabaseJWTIssuer   string
	SupabaseJWTAudience string

	IdempotencyTTL      time.Duration
	WebhookReplayTTL    time.Duration
	WebhookMaxBodyBytes int64
	RateLimitWindow     time.Duration
	RateLimitMax        int
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the peer address.
	// Enable it only when a proxy that overwrites those headers fronts the API.
	TrustProxyHeaders   bool

	LedgerStore    string
	MigrateOnStart bool

	ReconcileInterval time.Duration
	ReconcileBatch    int
	LockTTL           time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		RazorpayKeyID:         strings.TrimSpace(k.String("RAZORPAY_KEY_ID")),
		RazorpayKeySecret:     k.String("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: k.String("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       strings.TrimRight(valueOrDefault(k.String("RAZORPAY_BASE_URL"), "https://api.razorpay.com"), "/"),
		RazorpayTimeout:       parseDuration(k.String("RAZORPAY_TIMEOUT"), "10s"),
		DefaultCurrency:       strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY"), "INR")),

		SupabaseJWTSecret:   k.String("SUPABASE_JWT_SECRET"),
		SupabaseJWTIssuer:   strings.TrimSpace(k.String("SUPABASE_JWT_ISSUER")),
		SupabaseJWTAudience: valueOrDefault(k.String("SUPABASE_JWT_AUDIENCE"), "authenticated"),

		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxBodyBytes: parseInt64(k.String("WEBHOOK_MAX_BODY_BYTES"), 1<<20),
		RateLimitWindow:     parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:        int(parseInt64(k.String("RATE_LIMIT_MAX"), 30)),
		TrustProxyHeaders:   parseBool(k.String("TRUST_PROXY_HEADERS")),

		LedgerStore:    strings.ToLower(valueOrDefault(k.String("LEDGER_STORE"), StorePostgres)),
		MigrateOnStart: parseBool(k.String("MIGRATE_ON_START")),

		ReconcileInterval: parseDuration(k.String("RECONCILE_INTERVAL"), "1m"),
		ReconcileBatch:    int(parseInt64(k.String("RECONCILE_BATCH"), 100)),
		LockTTL:           parseDuration(k.String("LOCK_TTL"), "30s"),

		LogLevel:  valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		LogFormat: valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
	}

	if cfg.RazorpayKeyID == "" {
		return nil, errors.New("RAZORPAY_KEY_ID is required")
	}
	if cfg.RazorpayKeySecret == "" {
		return nil, errors.New("RAZORPAY_KEY_SECRET is required")
	}
	if cfg.RazorpayWebhookSecret == "" {
		return nil, errors.New("RAZORPAY_WEBHOOK_SECRET is required")
	}
	switch cfg.LedgerStore {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("LEDGER_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.LedgerStore)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "production", "prod":
		return true
	}
	return false
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
