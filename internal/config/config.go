package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Realtime backends understood by the change listener.
const (
	RealtimePostgres = "postgres"
	RealtimeRedis    = "redis"
	RealtimeNone     = "none"
)

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL      string
	DatabaseMaxConns int32
	JWTSecret        string
	Port             string
	TokenTTL         time.Duration

	FunctionsBaseURL string
	FunctionsAPIKey  string
	AITimeout        time.Duration
	RateLimitAgent   RateLimitConfig

	RealtimeBackend string
	RedisURL        string
	RefreshDebounce time.Duration
	ResyncInterval  time.Duration

	ReconcileInterval time.Duration

	StorageBucket          string
	StoragePrefix          string
	StorageCredentialsFile string

	PhoneRegion string
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:       int32(parsePositiveInt(getEnv("DB_MAX_CONNS", "10"), 10)),
		JWTSecret:              getEnv("JWT_SECRET", "dev-secret"),
		Port:                   getEnv("PORT", "8080"),
		TokenTTL:               parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour),
		FunctionsBaseURL:       getEnv("FUNCTIONS_BASE_URL", "http://localhost:54321/functions/v1"),
		FunctionsAPIKey:        os.Getenv("FUNCTIONS_API_KEY"),
		AITimeout:              parseDuration(getEnv("AI_TIMEOUT", "60s"), time.Minute),
		RealtimeBackend:        strings.ToLower(getEnv("REALTIME_BACKEND", RealtimePostgres)),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RefreshDebounce:        parseDuration(getEnv("REFRESH_DEBOUNCE", "750ms"), 750*time.Millisecond),
		ResyncInterval:         parseDuration(getEnv("PIPELINE_RESYNC_INTERVAL", "1m"), time.Minute),
		ReconcileInterval:      parseDuration(getEnv("PROVISION_RECONCILE_INTERVAL", "5m"), 5*time.Minute),
		StorageBucket:          os.Getenv("STORAGE_BUCKET"),
		StoragePrefix:          getEnv("STORAGE_PREFIX", "sponsor-assets"),
		StorageCredentialsFile: os.Getenv("STORAGE_CREDENTIALS_FILE"),
		PhoneRegion:            getEnv("PHONE_REGION", "US"),
	}

	switch cfg.RealtimeBackend {
	case RealtimePostgres, RealtimeRedis, RealtimeNone:
	default:
		return nil, fmt.Errorf("invalid REALTIME_BACKEND value: %q", cfg.RealtimeBackend)
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_AGENT", "20/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_AGENT value: %w", err)
	}
	cfg.RateLimitAgent = rl

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parsePositiveInt(input string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
