package service

// Logging Standards for PhishGuard
//
// Standard field names keep log lines from every component queryable the same way.
// Phone numbers are masked with privacy.MaskPhoneNumber, URLs are reduced to their
// host with privacy.MaskURL, and message content is never logged.

// Standard Field Names
const (
	// Core identifiers
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
	LogFieldMessageID = "message_id"
	LogFieldOutboxID  = "outbox_id"
	LogFieldSender    = "sender"
	LogFieldRecipient = "recipient"
	LogFieldPhone     = "phone"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Pipeline fields
	LogFieldStatus     = "status"
	LogFieldPrevStatus = "previous_status"
	LogFieldCommand    = "command"
	LogFieldTopic      = "topic"
	LogFieldOutcome    = "outcome"
	LogFieldCacheLevel = "cache_level"
	LogFieldVerdict    = "verdict"
	LogFieldURLHost    = "url_host"
	LogFieldURLCount   = "url_count"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldEndpoint   = "endpoint"
	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode   = "error_code"
	LogFieldRetryable   = "retryable"
	LogFieldAttempt     = "attempt"
	LogFieldMaxAttempts = "max_attempts"
)

// Log Level Usage
//
// DEBUG: per-URL cache decisions, skipped no-op subscription changes.
// INFO: startup/shutdown, subscription changes, messages entering analysis, final verdicts.
// WARN: duplicate deliveries, retryable oracle failures, inconclusive verdicts, lost races.
// ERROR: fail-closed rejections, dead-lettered messages, storage failures.
