// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL  string // PostgreSQL connection string (optional, uses in-memory if not set)
	SeedFixtures bool

	// Advisory reasoning service (optional, deterministic scoring if unset)
	AdvisoryAPIKey  string
	AdvisoryBaseURL string
	AdvisoryModel   string
	AdvisoryTimeout time.Duration

	// Analysis
	PatternCatalogFile string
	DefaultNetworkID   int64

	// HTTP
	RateLimitRPM int
	CORSOrigins  []string

	// Outbound events
	KafkaBrokers       string
	KafkaTopic         string
	AlertWebhookURL    string
	AlertWebhookSecret string

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort              = "3001"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultAdvisoryBaseURL   = "https://api.openai.com/v1"
	DefaultAdvisoryModel     = "gpt-4o"
	DefaultAdvisoryTimeoutMS = 8000
	DefaultNetworkID         = 137 // Polygon
	DefaultRateLimitRPM      = 120
	DefaultKafkaTopic        = "walletguard.events"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	apiKey := os.Getenv("ADVISORY_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SeedFixtures:       getEnvBool("SEED_FIXTURES", true),
		AdvisoryAPIKey:     apiKey,
		AdvisoryBaseURL:    getEnv("ADVISORY_BASE_URL", DefaultAdvisoryBaseURL),
		AdvisoryModel:      getEnv("ADVISORY_MODEL", DefaultAdvisoryModel),
		AdvisoryTimeout:    time.Duration(getEnvInt64("ADVISORY_TIMEOUT_MS", DefaultAdvisoryTimeoutMS)) * time.Millisecond,
		PatternCatalogFile: os.Getenv("PATTERN_CATALOG_FILE"),
		DefaultNetworkID:   getEnvInt64("DEFAULT_NETWORK_ID", DefaultNetworkID),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		CORSOrigins:        splitList(os.Getenv("CORS_ORIGINS")),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		AlertWebhookURL:    os.Getenv("ALERT_WEBHOOK_URL"),
		AlertWebhookSecret: os.Getenv("ALERT_WEBHOOK_SECRET"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\"")
	}
	if c.DefaultNetworkID <= 0 {
		return fmt.Errorf("DEFAULT_NETWORK_ID must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	if c.AdvisoryTimeout <= 0 {
		return fmt.Errorf("ADVISORY_TIMEOUT_MS must be positive")
	}
	if c.AdvisoryAPIKey != "" {
		if err := checkURL("ADVISORY_BASE_URL", c.AdvisoryBaseURL); err != nil {
			return err
		}
	}
	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.AlertWebhookURL != "" {
		if err := checkURL("ALERT_WEBHOOK_URL", c.AlertWebhookURL); err != nil {
			return err
		}
	}
	return nil
}

// AdvisoryEnabled reports whether an advisory API key is configured.
func (c *Config) AdvisoryEnabled() bool {
	return c.AdvisoryAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL", key)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
