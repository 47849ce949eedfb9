// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// MasterKey is the base64-encoded 32-byte key used to encrypt TOTP secrets at rest.
	MasterKey string `mapstructure:"MASTER_KEY"`
	// RecoveryPepper is mixed into recovery-code hashes before storage.
	RecoveryPepper string `mapstructure:"RECOVERY_PEPPER"`
	// OTPPepper is mixed into the OTP hash stored on a login challenge at start time.
	OTPPepper string `mapstructure:"OTP_PEPPER"`
	// ChallengeTTL is the device-challenge nonce lifetime (e.g. "300s").
	ChallengeTTL string `mapstructure:"CHALLENGE_TTL"`
	// LoginTTL is the login-challenge lifetime (e.g. "120s").
	LoginTTL string `mapstructure:"LOGIN_TTL"`
	// DebugEndpoints enables the /debug routes (OTP/secret disclosure). Must not be true when Env is production.
	DebugEndpoints bool `mapstructure:"DEBUG_ENDPOINTS"`

	// AssertionPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs login assertions. Optional.
	AssertionPrivateKey string `mapstructure:"ASSERTION_PRIVATE_KEY"`
	// AssertionPublicKey is the PEM-encoded public key or path to file; verifies login assertions.
	AssertionPublicKey string `mapstructure:"ASSERTION_PUBLIC_KEY"`
	// AssertionIssuer is the iss claim on login assertions.
	AssertionIssuer string `mapstructure:"ASSERTION_ISSUER"`
	// AssertionAudience is the aud claim on login assertions.
	AssertionAudience string `mapstructure:"ASSERTION_AUDIENCE"`
	// AssertionTTL is the login-assertion lifetime (e.g. "5m").
	AssertionTTL string `mapstructure:"ASSERTION_TTL"`

	// Telemetry (optional). When Kafka brokers are set, handlers emit auth events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events (default zt-totp-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("MASTER_KEY", "")
	v.SetDefault("RECOVERY_PEPPER", "")
	v.SetDefault("OTP_PEPPER", "")
	v.SetDefault("CHALLENGE_TTL", "300s")
	v.SetDefault("LOGIN_TTL", "120s")
	v.SetDefault("DEBUG_ENDPOINTS", false)
	v.SetDefault("ASSERTION_ISSUER", "zt-totp")
	v.SetDefault("ASSERTION_AUDIENCE", "zt-totp-clients")
	v.SetDefault("ASSERTION_TTL", "5m")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "zt-totp-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "zt-totp-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.MasterKey == "" {
		return nil, errors.New("config: MASTER_KEY is not set")
	}
	if _, err := cfg.MasterKeyBytes(); err != nil {
		return nil, err
	}
	if cfg.RecoveryPepper == "" {
		return nil, errors.New("config: RECOVERY_PEPPER is not set")
	}
	if cfg.OTPPepper == "" {
		return nil, errors.New("config: OTP_PEPPER is not set")
	}
	if cfg.DebugEndpoints && cfg.Env == "production" {
		return nil, errors.New("config: DEBUG_ENDPOINTS must not be true when APP_ENV=production")
	}

	return &cfg, nil
}

// MasterKeyBytes decodes MasterKey (standard or URL-safe base64) and requires exactly 32 bytes.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	s := strings.TrimSpace(c.MasterKey)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("config: MASTER_KEY is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("config: MASTER_KEY must decode to 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// ChallengeTTLDuration parses ChallengeTTL as a time.Duration. Returns 300s if unset or invalid.
func (c *Config) ChallengeTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.ChallengeTTL)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// LoginTTLDuration parses LoginTTL as a time.Duration. Returns 120s if unset or invalid.
func (c *Config) LoginTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.LoginTTL)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// AssertionTTLDuration parses AssertionTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) AssertionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.AssertionTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
