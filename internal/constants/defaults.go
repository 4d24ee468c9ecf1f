package constants

// Server defaults
const (
	DefaultServerPort            = 8080
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultWatchPollIntervalMs   = 500
	ServerErrorChannelSize       = 1
)

// Storage defaults
const (
	DefaultDatabasePath          = "phishguard.db"
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 100
	DefaultMaxBackoffMs          = 2000
)

// Encryption at rest
const (
	MinEncryptionSecretLength = 32
	EncryptionSalt            = "phishguard-field-encryption-v1"
	EncryptionIterations      = 100000
	EncryptionKeySize         = 32
	EncryptionNonceSize       = 12
)

// Broker defaults
const (
	DefaultBrokerURL          = "nats://127.0.0.1:4222"
	DefaultStreamName         = "PHISHGUARD"
	DefaultAnalysisTopic      = "sms.analysis"
	DefaultDeadLetterTopic    = "sms.analysis.dlt"
	DefaultConsumerName       = "sms-analysis-worker"
	DefaultRelayIntervalMs    = 500
	DefaultRelayBatchSize     = 100
	DefaultDuplicateWindowSec = 120
)

// Analysis redelivery defaults
const (
	DefaultRetryAttempts   = 4
	DefaultRetryDelayMs    = 60000
	DefaultRetryMultiplier = 5.0
)

// Threat oracle defaults
const (
	DefaultOracleBaseURL           = "https://webrisk.googleapis.com/v1eap1"
	DefaultOracleConnectTimeoutMs  = 1000
	DefaultOracleReadTimeoutMs     = 2000
	DefaultConfidenceThreshold     = "HIGH"
	DefaultBreakerMaxFailures      = 5
	DefaultBreakerTimeoutSec       = 30
	DefaultBreakerHalfOpenMaxCalls = 3
)

// Cache and retention defaults
const (
	DefaultL1CacheSize         = 10000
	DefaultL1CacheTTLMin       = 60
	DefaultURLCacheRetention   = 30
	DefaultMessageRetention    = 180
	DefaultCleanupIntervalHour = 24
)

// Subscription conflict retry defaults
const (
	DefaultSubscriptionAttempts   = 3
	DefaultSubscriptionDelayMs    = 200
	DefaultSubscriptionMultiplier = 2.0
)

// Inbound validation limits
const (
	MaxMessageLength = 4096
	PhoneNumberRegex = `^\+?[0-9]{10,15}$`
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)
