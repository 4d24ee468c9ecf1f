package config

import (
	"fmt"
	"os"
	"strings"

	"phishguard/internal/constants"
	"phishguard/internal/models"
	"phishguard/internal/security"
	"phishguard/pkg/webrisk"
	"phishguard/pkg/webrisk/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PHISHGUARD_ORACLE_API_KEY
const EnvPrefix = "PHISHGUARD"

var (
	ErrMissingServiceNumber = models.ConfigError{Message: "missing service phone number"}
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
	ErrMissingBrokerURL     = models.ConfigError{Message: "missing broker URL"}
	ErrMissingOracleURL     = models.ConfigError{Message: "missing threat oracle base URL"}
)

// LoadConfig reads the JSON file at path (optional), applies PHISHGUARD_* environment
// overrides on top of it and fills the remaining keys from defaults.
func LoadConfig(path string) (*models.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := security.ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_phone_number", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", constants.DefaultServerPort)
	v.SetDefault("server.read_timeout_sec", constants.DefaultServerReadTimeoutSec)
	v.SetDefault("server.write_timeout_sec", constants.DefaultServerWriteTimeoutSec)
	v.SetDefault("server.idle_timeout_sec", constants.DefaultServerIdleTimeoutSec)
	v.SetDefault("server.watch_poll_interval_ms", constants.DefaultWatchPollIntervalMs)

	v.SetDefault("security.api_key", "")

	v.SetDefault("database.path", constants.DefaultDatabasePath)
	v.SetDefault("database.encryption_enabled", false)
	v.SetDefault("database.encryption_secret", "")

	v.SetDefault("broker.url", constants.DefaultBrokerURL)
	v.SetDefault("broker.stream", constants.DefaultStreamName)
	v.SetDefault("broker.analysis_topic", constants.DefaultAnalysisTopic)
	v.SetDefault("broker.dead_letter_topic", constants.DefaultDeadLetterTopic)
	v.SetDefault("broker.consumer_name", constants.DefaultConsumerName)
	v.SetDefault("broker.relay_interval_ms", constants.DefaultRelayIntervalMs)
	v.SetDefault("broker.relay_batch_size", constants.DefaultRelayBatchSize)
	v.SetDefault("broker.duplicate_window_sec", constants.DefaultDuplicateWindowSec)

	v.SetDefault("retry.attempts", constants.DefaultRetryAttempts)
	v.SetDefault("retry.delay_ms", constants.DefaultRetryDelayMs)
	v.SetDefault("retry.multiplier", constants.DefaultRetryMultiplier)

	v.SetDefault("oracle.base_url", constants.DefaultOracleBaseURL)
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.connect_timeout_ms", constants.DefaultOracleConnectTimeoutMs)
	v.SetDefault("oracle.read_timeout_ms", constants.DefaultOracleReadTimeoutMs)
	v.SetDefault("oracle.confidence_threshold", constants.DefaultConfidenceThreshold)
	v.SetDefault("oracle.breaker_max_failures", constants.DefaultBreakerMaxFailures)
	v.SetDefault("oracle.breaker_timeout_sec", constants.DefaultBreakerTimeoutSec)

	v.SetDefault("cache.l1_size", constants.DefaultL1CacheSize)
	v.SetDefault("cache.l1_ttl_min", constants.DefaultL1CacheTTLMin)

	v.SetDefault("retention.url_cache_days", constants.DefaultURLCacheRetention)
	v.SetDefault("retention.message_days", constants.DefaultMessageRetention)
	v.SetDefault("retention.interval_hours", constants.DefaultCleanupIntervalHour)

	v.SetDefault("subscription.max_attempts", constants.DefaultSubscriptionAttempts)
	v.SetDefault("subscription.delay_ms", constants.DefaultSubscriptionDelayMs)
	v.SetDefault("subscription.multiplier", constants.DefaultSubscriptionMultiplier)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "phishguard")
	v.SetDefault("tracing.service_version", "")
	v.SetDefault("tracing.environment", "")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 0.1)
	v.SetDefault("tracing.use_stdout", false)
}

func validate(c *models.Config) error {
	c.ServicePhoneNumber = strings.TrimSpace(c.ServicePhoneNumber)
	if c.ServicePhoneNumber == "" {
		return ErrMissingServiceNumber
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Broker.URL == "" {
		return ErrMissingBrokerURL
	}
	if c.Oracle.BaseURL == "" {
		return ErrMissingOracleURL
	}
	if err := webrisk.ValidateBaseURL(c.Oracle.BaseURL); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level: %s", c.LogLevel)}
	}
	if _, err := types.ParseConfidenceLevel(c.Oracle.ConfidenceThreshold); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid confidence threshold: %s", c.Oracle.ConfidenceThreshold)}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}
	if c.Retry.Attempts < 1 {
		return models.ConfigError{Message: "retry.attempts must be at least 1"}
	}
	if c.Retry.DelayMs < 0 {
		return models.ConfigError{Message: "retry.delay_ms must not be negative"}
	}
	if c.Retry.Multiplier < 1 {
		return models.ConfigError{Message: "retry.multiplier must be at least 1"}
	}
	if c.Subscription.MaxAttempts < 1 {
		return models.ConfigError{Message: "subscription.max_attempts must be at least 1"}
	}
	if c.Broker.AnalysisTopic == "" || c.Broker.DeadLetterTopic == "" {
		return models.ConfigError{Message: "broker topics must not be empty"}
	}
	if c.Broker.AnalysisTopic == c.Broker.DeadLetterTopic {
		return models.ConfigError{Message: "broker analysis and dead-letter topics must differ"}
	}

	if c.Database.EncryptionEnabled && len(c.Database.EncryptionSecret) < constants.MinEncryptionSecretLength {
		return models.ConfigError{Message: fmt.Sprintf("database encryption secret must be at least %d characters long", constants.MinEncryptionSecretLength)}
	}

	// zero disables L1; negative is a typo
	if c.Cache.L1Size < 0 || c.Cache.L1TTLMin < 0 {
		return models.ConfigError{Message: "cache sizes must not be negative"}
	}
	if c.Retention.IntervalHours <= 0 {
		c.Retention.IntervalHours = constants.DefaultCleanupIntervalHour
	}
	return nil
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv(EnvPrefix+"_ENV") == "production"

	if isProduction {
		if c.Security.APIKey == "" {
			return models.ConfigError{Message: "API key is required in production (set PHISHGUARD_SECURITY_API_KEY environment variable)"}
		}
		if !c.Database.EncryptionEnabled {
			return models.ConfigError{Message: "database encryption must be enabled in production"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else {
		if c.Security.APIKey == "" {
			fmt.Fprintf(os.Stderr, "WARNING: API key not set. Set PHISHGUARD_SECURITY_API_KEY environment variable to protect the API.\n")
		}
	}

	if c.Oracle.APIKey == "" {
		fmt.Fprintf(os.Stderr, "WARNING: threat oracle API key not set. Set PHISHGUARD_ORACLE_API_KEY environment variable.\n")
	}
	return nil
}
