package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()
	labels := map[string]string{"status": "ALLOWED"}

	registry.IncrementCounter("sms_total", nil, "SMS")
	registry.IncrementCounter("sms_total", labels, "SMS")
	registry.IncrementCounter("sms_total", labels, "SMS")

	snapshot := registry.GetAllMetrics()
	assert.Equal(t, 1.0, snapshot.Counters["sms_total"].Value)
	assert.Equal(t, 2.0, snapshot.Counters["sms_total_status:ALLOWED"].Value)
	assert.Equal(t, 2.0, registry.CounterValue("sms_total", labels))
	assert.Zero(t, registry.CounterValue("missing", nil))
}

func TestRegistry_AddToCounter(t *testing.T) {
	registry := NewRegistry()

	registry.AddToCounter("purged", 5, nil, "Purged rows")
	registry.AddToCounter("purged", 3, nil, "Purged rows")

	assert.Equal(t, 8.0, registry.CounterValue("purged", nil))
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	registry.RecordTimer("latency", 100*time.Millisecond, nil, "Latency")
	registry.RecordTimer("latency", 200*time.Millisecond, nil, "Latency")

	timer, ok := registry.GetAllMetrics().Timers["latency"]
	require.True(t, ok)
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, 300.0, timer.Sum)
	assert.Equal(t, 100.0, timer.Min)
	assert.Equal(t, 200.0, timer.Max)
	assert.Equal(t, 150.0, timer.Average)
	assert.Equal(t, int64(2), registry.TimerCount("latency", nil))
}

func TestRegistry_Percentiles(t *testing.T) {
	registry := NewRegistry()

	for i := 10; i >= 1; i-- {
		registry.RecordTimer("p", time.Duration(i*10)*time.Millisecond, nil, "P")
	}

	timer := registry.GetAllMetrics().Timers["p"]
	assert.Equal(t, 100.0, timer.P95)
	assert.Equal(t, 100.0, timer.P99)
}

func TestRegistry_SetGauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("outbox_backlog", 42, nil, "Backlog")
	registry.SetGauge("outbox_backlog", 7, nil, "Backlog")

	assert.Equal(t, 7.0, registry.GetAllMetrics().Gauges["outbox_backlog"].Value)
}

func TestRegistry_MetricKeyIsStable(t *testing.T) {
	registry := NewRegistry()
	labels := map[string]string{"outcome": "hit", "level": "L1"}

	for i := 0; i < 20; i++ {
		assert.Equal(t, "cache_level:L1_outcome:hit", registry.metricKey("cache", labels))
	}
	assert.Equal(t, "cache", registry.metricKey("cache", nil))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	registry := NewRegistry()
	registry.IncrementCounter("c", nil, "C")

	snapshot := registry.GetAllMetrics()
	registry.IncrementCounter("c", nil, "C")

	assert.Equal(t, 1.0, snapshot.Counters["c"].Value)
	assert.GreaterOrEqual(t, snapshot.UptimeMs, int64(0))
	assert.NotZero(t, snapshot.Timestamp)
}

func TestPipelineHelpers(t *testing.T) {
	registry := NewRegistry()

	registry.CacheAccess(CacheLevelL1, CacheHit)
	registry.CacheAccess(CacheLevelL1, CacheHit)
	registry.CacheAccess(CacheLevelL2, CacheMiss)
	registry.ConsumerOutcome(OutcomeMalformedPayload)
	registry.SMSProcessed("ACCEPTED")
	registry.WebRiskFailure("transient")
	registry.RetentionDeleted("sms_messages", 12)

	assert.Equal(t, 2.0, registry.CounterValue(URLCacheAccessTotal, map[string]string{"level": "L1", "outcome": "hit"}))
	assert.Equal(t, 1.0, registry.CounterValue(URLCacheAccessTotal, map[string]string{"level": "L2", "outcome": "miss"}))
	assert.Equal(t, 1.0, registry.CounterValue(ConsumerOutcomesTotal, map[string]string{"outcome": "malformed_payload"}))
	assert.Equal(t, 1.0, registry.CounterValue(SMSProcessedTotal, map[string]string{"status": "ACCEPTED"}))
	assert.Equal(t, 1.0, registry.CounterValue(WebRiskAPIFailures, map[string]string{"kind": "transient"}))
	assert.Equal(t, 12.0, registry.CounterValue(RetentionDeletedTotal, map[string]string{"table": "sms_messages"}))
}

func TestGlobalRegistry(t *testing.T) {
	registry := GetRegistry()
	registry.OutboxBacklog(3)

	assert.Same(t, registry, GetRegistry())
	assert.Equal(t, 3.0, registry.GetAllMetrics().Gauges[OutboxPending].Value)
}

func TestCopyLabels(t *testing.T) {
	original := map[string]string{"key1": "value1"}

	copied := copyLabels(original)
	copied["key2"] = "value2"

	assert.NotContains(t, original, "key2")
	assert.Nil(t, copyLabels(nil))
}
