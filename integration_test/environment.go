package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"phishguard/internal/broker"
	"phishguard/internal/cache"
	"phishguard/internal/database"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/service"
	"phishguard/internal/urlextract"
	"phishguard/pkg/webrisk"
	"phishguard/pkg/webrisk/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	servicePhone    = "+15550000000"
	subscriberPhone = "+15551110000"
	outsiderPhone   = "+15552220000"
	senderPhone     = "+15553330000"
	analysisTopic   = "sms.analysis"
	testSecret      = "integration-test-secret-with-32-chars!"
)

// published is one message handed to the loopback broker
type published struct {
	Subject string
	MsgID   string
	Payload string
}

// loopbackBroker records publishes in order instead of talking to NATS
type loopbackBroker struct {
	mu       sync.Mutex
	messages []published
	seen     map[string]bool
}

func (b *loopbackBroker) Publish(_ context.Context, subject, msgID string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen == nil {
		b.seen = make(map[string]bool)
	}
	if b.seen[msgID] {
		return nil
	}
	b.seen[msgID] = true
	b.messages = append(b.messages, published{Subject: subject, MsgID: msgID, Payload: string(data)})
	return nil
}

// drain hands back everything published since the last call
func (b *loopbackBroker) drain() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = nil
	return out
}

// stubOracle answers evaluateUri calls; URIs containing "evil" score HIGH
type stubOracle struct {
	server *httptest.Server
	calls  atomic.Int32
	down   atomic.Bool
}

func newStubOracle(t *testing.T) *stubOracle {
	o := &stubOracle{}
	o.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.calls.Add(1)
		if o.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req types.EvaluateURIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		level := types.ConfidenceSafe
		if strings.Contains(req.URI, "evil") {
			level = types.ConfidenceHigh
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.EvaluateURIResponse{Scores: []types.Score{
			{ThreatType: types.ThreatTypeSocialEngineering, ConfidenceLevel: level},
		}})
	}))
	t.Cleanup(o.server.Close)
	return o
}

// TestEnvironment wires the pipeline over a real sqlite store
type TestEnvironment struct {
	t          *testing.T
	DB         *database.Database
	Broker     *loopbackBroker
	Oracle     *stubOracle
	Relay      *broker.Relay
	Processing service.SMSProcessingService
	Worker     service.AnalysisWorker
	Scheduler  *service.Scheduler
	Metrics    *metrics.Registry
}

func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := metrics.NewRegistry()

	db, err := database.New(models.DatabaseConfig{
		Path:              filepath.Join(t.TempDir(), "phishguard.db"),
		EncryptionEnabled: true,
		EncryptionSecret:  testSecret,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	oracle := newStubOracle(t)
	client := webrisk.NewClient(models.OracleConfig{
		BaseURL:            oracle.server.URL + "/v1",
		APIKey:             "test-key",
		ConnectTimeoutMs:   1000,
		ReadTimeoutMs:      2000,
		BreakerMaxFailures: 100,
		BreakerTimeoutSec:  1,
	}, nil, logger, registry)

	ledger := service.NewMessageLedger(db, logger)
	subscriptions := service.NewSubscriptionService(db, models.SubscriptionConfig{MaxAttempts: 3, DelayMs: 1, Multiplier: 2}, logger, registry)
	router := service.NewCommandRouter(ledger, subscriptions, logger)
	outbox := service.NewOutboxPublisher(db, analysisTopic, logger)
	urlCache := service.NewURLReputationCache(cache.NewVerdictCache(100, 0), db,
		webrisk.NewEvaluator(client, types.ConfidenceHigh), logger, registry)
	policy := service.NewMessagePolicy(subscriptions, urlextract.Extractor{}, urlCache, logger)

	loopback := &loopbackBroker{}
	return &TestEnvironment{
		t:          t,
		DB:         db,
		Broker:     loopback,
		Oracle:     oracle,
		Relay:      broker.NewRelay(db, loopback, 0, 10, logger, registry),
		Processing: service.NewSMSProcessingService(servicePhone, ledger, router, outbox, logger, registry),
		Worker:     service.NewAnalysisWorker(ledger, policy, logger, registry),
		Scheduler:  service.NewScheduler(db, models.RetentionConfig{URLCacheDays: 30, MessageDays: 180}, logger, registry),
		Metrics:    registry,
	}
}
