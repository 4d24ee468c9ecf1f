package metrics

import "time"

// Pipeline metric names
const (
	SMSProcessedTotal      = "sms_processed_total"
	SMSProcessingLatency   = "sms_processing_latency"
	URLCacheAccessTotal    = "url_cache_access_total"
	URLAnalysisLatency     = "url_analysis_latency"
	WebRiskAPILatency      = "webrisk_api_latency"
	WebRiskAPIFailures     = "webrisk_api_failures_total"
	ConsumerOutcomesTotal  = "analysis_consumer_outcomes_total"
	OutboxRelayedTotal     = "outbox_relayed_total"
	OutboxPending          = "outbox_pending"
	DeadLetteredTotal      = "analysis_dead_lettered_total"
	RetentionDeletedTotal  = "retention_deleted_total"
	SubscriptionChangesTot = "subscription_changes_total"
)

// Cache tiers and outcomes used as url_cache_access_total labels
const (
	CacheLevelL1 = "L1"
	CacheLevelL2 = "L2"
	CacheHit     = "hit"
	CacheMiss    = "miss"
)

// Consumer outcomes that are not derived from a final message status
const (
	OutcomeMalformedPayload = "malformed_payload"
	OutcomeMessageNotFound  = "message_not_found"
	OutcomeAlreadyProcessed = "skipped_already_processed"
	OutcomeUnexpectedError  = "error_unexpected"
	OutcomeDeadLetter       = "dlt_received"
	OutcomeRetryScheduled   = "retry_scheduled"
)

// SMSProcessed counts a message leaving the ingestion path with the given public status.
func (r *Registry) SMSProcessed(status string) {
	r.IncrementCounter(SMSProcessedTotal, map[string]string{"status": status}, "Inbound SMS by processing status")
}

// SMSLatency records end-to-end ingestion latency.
func (r *Registry) SMSLatency(d time.Duration) {
	r.RecordTimer(SMSProcessingLatency, d, nil, "Inbound SMS processing latency")
}

// CacheAccess counts one URL lookup against a cache tier.
func (r *Registry) CacheAccess(level, outcome string) {
	r.IncrementCounter(URLCacheAccessTotal, map[string]string{"level": level, "outcome": outcome}, "URL reputation cache lookups")
}

// URLAnalysis records the duration of a whole batch reputation check.
func (r *Registry) URLAnalysis(d time.Duration) {
	r.RecordTimer(URLAnalysisLatency, d, nil, "URL reputation check latency")
}

// WebRiskCall records the latency of one oracle request.
func (r *Registry) WebRiskCall(d time.Duration) {
	r.RecordTimer(WebRiskAPILatency, d, nil, "Threat oracle request latency")
}

// WebRiskFailure counts an oracle failure of the given kind.
func (r *Registry) WebRiskFailure(kind string) {
	r.IncrementCounter(WebRiskAPIFailures, map[string]string{"kind": kind}, "Threat oracle failures")
}

// ConsumerOutcome counts how an analysis delivery was disposed of.
func (r *Registry) ConsumerOutcome(outcome string) {
	r.IncrementCounter(ConsumerOutcomesTotal, map[string]string{"outcome": outcome}, "Analysis consumer outcomes")
}

// OutboxRelayed counts outbox rows published to the broker.
func (r *Registry) OutboxRelayed(topic string) {
	r.IncrementCounter(OutboxRelayedTotal, map[string]string{"topic": topic}, "Outbox events relayed to the broker")
}

// RetentionDeleted adds purged rows for a table.
func (r *Registry) RetentionDeleted(table string, rows int64) {
	r.AddToCounter(RetentionDeletedTotal, float64(rows), map[string]string{"table": table}, "Rows removed by retention cleanup")
}

// SubscriptionChanged counts an effective subscription change.
func (r *Registry) SubscriptionChanged(command string) {
	r.IncrementCounter(SubscriptionChangesTot, map[string]string{"command": command}, "Subscription state changes")
}

// OutboxBacklog reports rows still waiting for the relay.
func (r *Registry) OutboxBacklog(rows int) {
	r.SetGauge(OutboxPending, float64(rows), nil, "Outbox events waiting to be relayed")
}

// DeadLettered counts deliveries moved to the dead-letter subject.
func (r *Registry) DeadLettered(subject string) {
	r.IncrementCounter(DeadLetteredTotal, map[string]string{"subject": subject}, "Analysis deliveries moved to the dead-letter subject")
}
