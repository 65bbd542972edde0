package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "SEED_FIXTURES",
		"ADVISORY_API_KEY", "OPENAI_API_KEY", "ADVISORY_BASE_URL", "ADVISORY_MODEL",
		"ADVISORY_TIMEOUT_MS", "PATTERN_CATALOG_FILE", "DEFAULT_NETWORK_ID",
		"RATE_LIMIT_RPM", "CORS_ORIGINS", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"ALERT_WEBHOOK_URL", "ALERT_WEBHOOK_SECRET", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		setEnv(t, k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, int64(DefaultNetworkID), cfg.DefaultNetworkID)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, 8*time.Second, cfg.AdvisoryTimeout)
	assert.True(t, cfg.SeedFixtures)
	assert.False(t, cfg.AdvisoryEnabled())
	assert.Empty(t, cfg.CORSOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	setEnv(t, "PORT", "9090")
	setEnv(t, "LOG_FORMAT", "json")
	setEnv(t, "ADVISORY_API_KEY", "sk-test")
	setEnv(t, "ADVISORY_TIMEOUT_MS", "250")
	setEnv(t, "DEFAULT_NETWORK_ID", "1")
	setEnv(t, "CORS_ORIGINS", "http://localhost:5173, https://app.example.com ,")
	setEnv(t, "SEED_FIXTURES", "false")
	setEnv(t, "KAFKA_BROKERS", "localhost:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.AdvisoryEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.AdvisoryTimeout)
	assert.Equal(t, int64(1), cfg.DefaultNetworkID)
	assert.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.CORSOrigins)
	assert.False(t, cfg.SeedFixtures)
	assert.Equal(t, DefaultKafkaTopic, cfg.KafkaTopic)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	setEnv(t, "OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.AdvisoryAPIKey)
}

func TestLoad_InvalidNumbersUseDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, "RATE_LIMIT_RPM", "lots")
	setEnv(t, "SEED_FIXTURES", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.True(t, cfg.SeedFixtures)
}

func TestLoad_InvalidWebhookURL(t *testing.T) {
	clearEnv(t)
	setEnv(t, "ALERT_WEBHOOK_URL", "not a url")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_WEBHOOK_URL")
}

func valid() Config {
	return Config{
		Port:             "3001",
		LogFormat:        "text",
		DefaultNetworkID: 137,
		RateLimitRPM:     120,
		AdvisoryTimeout:  time.Second,
		AdvisoryBaseURL:  DefaultAdvisoryBaseURL,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT is required"},
		{name: "non-numeric port", mutate: func(c *Config) { c.Port = "http" }, wantErr: "PORT must be"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "zero network", mutate: func(c *Config) { c.DefaultNetworkID = 0 }, wantErr: "DEFAULT_NETWORK_ID"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimitRPM = 0 }, wantErr: "RATE_LIMIT_RPM"},
		{name: "zero advisory timeout", mutate: func(c *Config) { c.AdvisoryTimeout = 0 }, wantErr: "ADVISORY_TIMEOUT_MS"},
		{
			name: "advisory with bad base url",
			mutate: func(c *Config) {
				c.AdvisoryAPIKey = "sk"
				c.AdvisoryBaseURL = "ftp://x"
			},
			wantErr: "ADVISORY_BASE_URL",
		},
		{
			name: "bad base url ignored without key",
			mutate: func(c *Config) { c.AdvisoryBaseURL = "ftp://x" },
		},
		{
			name: "kafka without topic",
			mutate: func(c *Config) {
				c.KafkaBrokers = "localhost:9092"
				c.KafkaTopic = ""
			},
			wantErr: "KAFKA_TOPIC",
		},
		{name: "webhook url", mutate: func(c *Config) { c.AlertWebhookURL = "https://hooks.example.com/wg" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_EnvHelpers(t *testing.T) {
	cfg := &Config{Env: "production"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
}
