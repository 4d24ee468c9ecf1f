package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phishguard/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"service_phone_number": " +15550009999 ",
		"log_level": "warn",
		"database": {"path": "/var/lib/phishguard/pg.db"},
		"oracle": {"confidence_threshold": "medium"},
		"retry": {"attempts": 6}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "+15550009999", cfg.ServicePhoneNumber)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/var/lib/phishguard/pg.db", cfg.Database.Path)
	assert.Equal(t, "medium", cfg.Oracle.ConfidenceThreshold)
	assert.Equal(t, 6, cfg.Retry.Attempts)

	assert.Equal(t, constants.DefaultRetryDelayMs, cfg.Retry.DelayMs)
	assert.Equal(t, constants.DefaultRetryMultiplier, cfg.Retry.Multiplier)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultAnalysisTopic, cfg.Broker.AnalysisTopic)
	assert.Equal(t, constants.DefaultDeadLetterTopic, cfg.Broker.DeadLetterTopic)
	assert.Equal(t, constants.DefaultL1CacheSize, cfg.Cache.L1Size)
	assert.Equal(t, constants.DefaultURLCacheRetention, cfg.Retention.URLCacheDays)
	assert.Equal(t, constants.DefaultSubscriptionAttempts, cfg.Subscription.MaxAttempts)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"service_phone_number": "+15550009999", "oracle": {"api_key": "from-file"}}`)

	t.Setenv("PHISHGUARD_ORACLE_API_KEY", "from-env")
	t.Setenv("PHISHGUARD_SECURITY_API_KEY", "api-key")
	t.Setenv("PHISHGUARD_BROKER_URL", "nats://broker:4222")
	t.Setenv("PHISHGUARD_RETRY_ATTEMPTS", "2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Oracle.APIKey)
	assert.Equal(t, "api-key", cfg.Security.APIKey)
	assert.Equal(t, "nats://broker:4222", cfg.Broker.URL)
	assert.Equal(t, 2, cfg.Retry.Attempts)
}

func TestLoadConfig_WithoutFile(t *testing.T) {
	t.Setenv("PHISHGUARD_SERVICE_PHONE_NUMBER", "+15550009999")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "+15550009999", cfg.ServicePhoneNumber)
	assert.Equal(t, constants.DefaultDatabasePath, cfg.Database.Path)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing service number", `{}`, "missing service phone number"},
		{"bad log level", `{"service_phone_number": "+1555", "log_level": "loud"}`, "invalid log level"},
		{"bad threshold", `{"service_phone_number": "+1555", "oracle": {"confidence_threshold": "EXTREME"}}`, "invalid confidence threshold"},
		{"zero attempts", `{"service_phone_number": "+1555", "retry": {"attempts": 0}}`, "retry.attempts"},
		{"shrinking multiplier", `{"service_phone_number": "+1555", "retry": {"multiplier": 0.5}}`, "retry.multiplier"},
		{"same topics", `{"service_phone_number": "+1555", "broker": {"analysis_topic": "a", "dead_letter_topic": "a"}}`, "must differ"},
		{"weak secret", `{"service_phone_number": "+1555", "database": {"encryption_enabled": true, "encryption_secret": "short"}}`, "encryption secret"},
		{"bad port", `{"service_phone_number": "+1555", "server": {"port": 70000}}`, "invalid server port"},
		{"unparseable oracle url", `{"service_phone_number": "+1555", "oracle": {"base_url": "http://oracle:port:x"}}`, "invalid oracle base URL"},
		{"oracle url without scheme", `{"service_phone_number": "+1555", "oracle": {"base_url": "oracle.internal"}}`, "invalid oracle base URL"},
		{"negative cache", `{"service_phone_number": "+1555", "cache": {"l1_size": -1}}`, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{not json`))
	require.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadConfig_RejectsTraversal(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")
}

func TestLoadConfig_Production(t *testing.T) {
	strong := strings.Repeat("s", constants.MinEncryptionSecretLength)

	t.Run("requires api key", func(t *testing.T) {
		t.Setenv("PHISHGUARD_ENV", "production")
		_, err := LoadConfig(writeConfig(t, `{"service_phone_number": "+1555"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("requires encryption", func(t *testing.T) {
		t.Setenv("PHISHGUARD_ENV", "production")
		t.Setenv("PHISHGUARD_SECURITY_API_KEY", "k")
		_, err := LoadConfig(writeConfig(t, `{"service_phone_number": "+1555"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encryption must be enabled")
	})

	t.Run("forbids debug logging", func(t *testing.T) {
		t.Setenv("PHISHGUARD_ENV", "production")
		t.Setenv("PHISHGUARD_SECURITY_API_KEY", "k")
		t.Setenv("PHISHGUARD_DATABASE_ENCRYPTION_SECRET", strong)
		_, err := LoadConfig(writeConfig(t, `{"service_phone_number": "+1555", "log_level": "debug", "database": {"encryption_enabled": true}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debug logging")
	})

	t.Run("accepts hardened config", func(t *testing.T) {
		t.Setenv("PHISHGUARD_ENV", "production")
		t.Setenv("PHISHGUARD_SECURITY_API_KEY", "k")
		t.Setenv("PHISHGUARD_DATABASE_ENCRYPTION_SECRET", strong)
		cfg, err := LoadConfig(writeConfig(t, `{"service_phone_number": "+1555", "database": {"encryption_enabled": true}}`))
		require.NoError(t, err)
		assert.True(t, cfg.Database.EncryptionEnabled)
	})
}
