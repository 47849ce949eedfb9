package config

import (
	"encoding/base64"
	"os"
	"testing"
	"time"
)

// validMasterKey is 32 zero bytes, base64-encoded.
var validMasterKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("MASTER_KEY", validMasterKey)
	os.Setenv("RECOVERY_PEPPER", "recovery-pepper")
	os.Setenv("OTP_PEPPER", "otp-pepper")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.ChallengeTTLDuration() != 300*time.Second {
		t.Errorf("ChallengeTTLDuration = %v, want 300s", cfg.ChallengeTTLDuration())
	}
	if cfg.LoginTTLDuration() != 120*time.Second {
		t.Errorf("LoginTTLDuration = %v, want 120s", cfg.LoginTTLDuration())
	}
	if cfg.AssertionTTLDuration() != 5*time.Minute {
		t.Errorf("AssertionTTLDuration = %v, want 5m", cfg.AssertionTTLDuration())
	}
	if cfg.DebugEndpoints {
		t.Error("DebugEndpoints should default to false")
	}
	if cfg.TelemetryKafkaTopic != "zt-totp-events" {
		t.Errorf("TelemetryKafkaTopic = %q, want zt-totp-events", cfg.TelemetryKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setRequired(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("CHALLENGE_TTL", "60s")
	os.Setenv("LOGIN_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.ChallengeTTLDuration() != 60*time.Second {
		t.Errorf("ChallengeTTLDuration = %v, want 60s", cfg.ChallengeTTLDuration())
	}
	if cfg.LoginTTLDuration() != 30*time.Second {
		t.Errorf("LoginTTLDuration = %v, want 30s", cfg.LoginTTLDuration())
	}
}

func TestLoad_MissingMasterKey(t *testing.T) {
	setRequired(t)
	os.Unsetenv("MASTER_KEY")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a missing MASTER_KEY")
	}
}

func TestLoad_MalformedMasterKey(t *testing.T) {
	setRequired(t)
	os.Setenv("MASTER_KEY", "not base64 !!")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a malformed MASTER_KEY")
	}

	os.Setenv("MASTER_KEY", base64.StdEncoding.EncodeToString(make([]byte, 16)))
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a 16-byte MASTER_KEY")
	}
}

func TestLoad_MissingPeppers(t *testing.T) {
	setRequired(t)
	os.Unsetenv("RECOVERY_PEPPER")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a missing RECOVERY_PEPPER")
	}

	setRequired(t)
	os.Unsetenv("OTP_PEPPER")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a missing OTP_PEPPER")
	}
}

func TestLoad_RefusesDebugEndpointsInProduction(t *testing.T) {
	setRequired(t)
	os.Setenv("APP_ENV", "production")
	os.Setenv("DEBUG_ENDPOINTS", "true")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted DEBUG_ENDPOINTS=true with APP_ENV=production")
	}

	setRequired(t)
	os.Setenv("APP_ENV", "development")
	os.Setenv("DEBUG_ENDPOINTS", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DebugEndpoints {
		t.Fatal("DebugEndpoints not set in development")
	}
}

func TestMasterKeyBytes_URLSafe(t *testing.T) {
	setRequired(t)
	os.Setenv("MASTER_KEY", base64.URLEncoding.EncodeToString(make([]byte, 32)))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	raw, err := cfg.MasterKeyBytes()
	if err != nil {
		t.Fatalf("MasterKeyBytes: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("key length = %d, want 32", len(raw))
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	setRequired(t)
	os.Setenv("KAFKA_BROKERS", "localhost:9092, broker2:9092 ,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "localhost:9092" || brokers[1] != "broker2:9092" {
		t.Fatalf("brokers = %v", brokers)
	}

	os.Unsetenv("KAFKA_BROKERS")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TelemetryKafkaBrokersList(); got != nil {
		t.Fatalf("brokers = %v, want nil when unset", got)
	}
}
