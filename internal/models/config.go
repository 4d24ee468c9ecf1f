package models

// Config holds the application configuration
type Config struct {
	ServicePhoneNumber string             `json:"service_phone_number" mapstructure:"service_phone_number"`
	LogLevel           string             `json:"log_level" mapstructure:"log_level"`
	Server             ServerConfig       `json:"server" mapstructure:"server"`
	Security           SecurityConfig     `json:"security" mapstructure:"security"`
	Database           DatabaseConfig     `json:"database" mapstructure:"database"`
	Broker             BrokerConfig       `json:"broker" mapstructure:"broker"`
	Retry              RetryConfig        `json:"retry" mapstructure:"retry"`
	Oracle             OracleConfig       `json:"oracle" mapstructure:"oracle"`
	Cache              CacheConfig        `json:"cache" mapstructure:"cache"`
	Retention          RetentionConfig    `json:"retention" mapstructure:"retention"`
	Subscription       SubscriptionConfig `json:"subscription" mapstructure:"subscription"`
	Tracing            TracingConfig      `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port              int `json:"port" mapstructure:"port"`
	ReadTimeoutSec    int `json:"read_timeout_sec" mapstructure:"read_timeout_sec"`
	WriteTimeoutSec   int `json:"write_timeout_sec" mapstructure:"write_timeout_sec"`
	IdleTimeoutSec    int `json:"idle_timeout_sec" mapstructure:"idle_timeout_sec"`
	WatchPollInterval int `json:"watch_poll_interval_ms" mapstructure:"watch_poll_interval_ms"`
}

// SecurityConfig holds API authentication settings
type SecurityConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path              string `json:"path" mapstructure:"path"`
	EncryptionEnabled bool   `json:"encryption_enabled" mapstructure:"encryption_enabled"`
	EncryptionSecret  string `json:"encryption_secret" mapstructure:"encryption_secret"`
}

// BrokerConfig holds NATS JetStream settings
type BrokerConfig struct {
	URL              string `json:"url" mapstructure:"url"`
	Stream           string `json:"stream" mapstructure:"stream"`
	AnalysisTopic    string `json:"analysis_topic" mapstructure:"analysis_topic"`
	DeadLetterTopic  string `json:"dead_letter_topic" mapstructure:"dead_letter_topic"`
	ConsumerName     string `json:"consumer_name" mapstructure:"consumer_name"`
	RelayIntervalMs  int    `json:"relay_interval_ms" mapstructure:"relay_interval_ms"`
	RelayBatchSize   int    `json:"relay_batch_size" mapstructure:"relay_batch_size"`
	DuplicateWindowS int    `json:"duplicate_window_sec" mapstructure:"duplicate_window_sec"`
}

// RetryConfig controls redelivery of analysis events that failed transiently.
// Attempts counts every delivery, the first one included.
type RetryConfig struct {
	Attempts   int     `json:"attempts" mapstructure:"attempts"`
	DelayMs    int     `json:"delay_ms" mapstructure:"delay_ms"`
	Multiplier float64 `json:"multiplier" mapstructure:"multiplier"`
}

// OracleConfig holds threat oracle client settings
type OracleConfig struct {
	BaseURL             string `json:"base_url" mapstructure:"base_url"`
	APIKey              string `json:"api_key" mapstructure:"api_key"`
	ConnectTimeoutMs    int    `json:"connect_timeout_ms" mapstructure:"connect_timeout_ms"`
	ReadTimeoutMs       int    `json:"read_timeout_ms" mapstructure:"read_timeout_ms"`
	ConfidenceThreshold string `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	BreakerMaxFailures  int    `json:"breaker_max_failures" mapstructure:"breaker_max_failures"`
	BreakerTimeoutSec   int    `json:"breaker_timeout_sec" mapstructure:"breaker_timeout_sec"`
}

// CacheConfig sizes the in-process URL verdict cache
type CacheConfig struct {
	L1Size   int `json:"l1_size" mapstructure:"l1_size"`
	L1TTLMin int `json:"l1_ttl_min" mapstructure:"l1_ttl_min"`
}

// RetentionConfig controls the scheduled purge of old rows
type RetentionConfig struct {
	URLCacheDays  int `json:"url_cache_days" mapstructure:"url_cache_days"`
	MessageDays   int `json:"message_days" mapstructure:"message_days"`
	IntervalHours int `json:"interval_hours" mapstructure:"interval_hours"`
}

// SubscriptionConfig bounds the retry of conflicting subscription writes
type SubscriptionConfig struct {
	MaxAttempts int     `json:"max_attempts" mapstructure:"max_attempts"`
	DelayMs     int     `json:"delay_ms" mapstructure:"delay_ms"`
	Multiplier  float64 `json:"multiplier" mapstructure:"multiplier"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName    string  `json:"service_name" mapstructure:"service_name"`
	ServiceVersion string  `json:"service_version" mapstructure:"service_version"`
	Environment    string  `json:"environment" mapstructure:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate" mapstructure:"sample_rate"`
	UseStdout      bool    `json:"use_stdout" mapstructure:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
