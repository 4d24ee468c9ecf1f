package service

import (
	"context"
	"sync"
	"time"

	"phishguard/internal/database"
	"phishguard/internal/metrics"
	"phishguard/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// fakeMessageStore keeps records in memory with the same version rules as the database
type fakeMessageStore struct {
	mu      sync.Mutex
	records map[string]models.MessageRecord
	byKey   map[string]string
	outbox  []models.OutboxEntry

	getErr    error
	createErr error
	updateErr error

	// beforeUpdate runs inside UpdateMessageStatus before the version check
	beforeUpdate func(id string)
	updates      int
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		records: make(map[string]models.MessageRecord),
		byKey:   make(map[string]string),
	}
}

func (f *fakeMessageStore) CreateMessage(ctx context.Context, record *models.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byKey[record.IdempotencyKey]; ok {
		return database.ErrDuplicate
	}
	now := time.Now().UTC()
	record.ID = uuid.NewString()
	record.Version = 0
	record.CreatedAt = now
	record.UpdatedAt = now
	f.records[record.ID] = *record
	f.byKey[record.IdempotencyKey] = record.ID
	return nil
}

func (f *fakeMessageStore) GetMessage(ctx context.Context, id string) (*models.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeMessageStore) GetMessageByIdempotencyKey(ctx context.Context, key string) (*models.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	id, ok := f.byKey[key]
	if !ok {
		return nil, nil
	}
	rec := f.records[id]
	return &rec, nil
}

func (f *fakeMessageStore) UpdateMessageStatus(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(record.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.applyLocked(record, status)
}

func (f *fakeMessageStore) applyLocked(record *models.MessageRecord, status models.MessageStatus) error {
	stored, ok := f.records[record.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Version != record.Version {
		return database.ErrVersionConflict
	}
	stored.Status = status
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	f.records[record.ID] = stored
	record.Status = stored.Status
	record.Version = stored.Version
	record.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeMessageStore) MarkPendingWithOutbox(ctx context.Context, record *models.MessageRecord, topic string) (*models.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if err := f.applyLocked(record, models.StatusPendingAnalysis); err != nil {
		return nil, err
	}
	entry := models.OutboxEntry{ID: uuid.NewString(), Topic: topic, Payload: record.ID, CreatedAt: time.Now().UTC()}
	f.outbox = append(f.outbox, entry)
	return &entry, nil
}

// put stores a record directly and returns a copy
func (f *fakeMessageStore) put(status models.MessageStatus, content string) *models.MessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := models.MessageRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		Sender:         "+15550001111",
		Recipient:      "+15550002222",
		Content:        content,
		Status:         status,
	}
	f.records[rec.ID] = rec
	f.byKey[rec.IdempotencyKey] = rec.ID
	return &rec
}

// bump simulates a concurrent writer moving the record to status
func (f *fakeMessageStore) bump(id string, status models.MessageStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[id]
	rec.Status = status
	rec.Version++
	f.records[id] = rec
}

func (f *fakeMessageStore) status(id string) models.MessageStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].Status
}

func (f *fakeMessageStore) outboxLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outbox)
}

// fakeSubscriberStore keeps subscribers in memory keyed by phone hash
type fakeSubscriberStore struct {
	mu   sync.Mutex
	subs map[string]models.Subscriber

	getErr error
	// conflicts makes the next N writes fail with a version conflict
	conflicts int
	writes    int
}

func newFakeSubscriberStore() *fakeSubscriberStore {
	return &fakeSubscriberStore{subs: make(map[string]models.Subscriber)}
}

func (f *fakeSubscriberStore) GetSubscriberByHash(ctx context.Context, phoneHash string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	sub, ok := f.subs[phoneHash]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (f *fakeSubscriberStore) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.conflicts > 0 {
		f.conflicts--
		return database.ErrDuplicate
	}
	if _, ok := f.subs[sub.PhoneHash]; ok {
		return database.ErrDuplicate
	}
	sub.ID = uuid.NewString()
	f.subs[sub.PhoneHash] = *sub
	return nil
}

func (f *fakeSubscriberStore) UpdateSubscriberActive(ctx context.Context, sub *models.Subscriber, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.conflicts > 0 {
		f.conflicts--
		return database.ErrVersionConflict
	}
	stored, ok := f.subs[sub.PhoneHash]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Version != sub.Version {
		return database.ErrVersionConflict
	}
	stored.IsActive = active
	stored.Version++
	f.subs[sub.PhoneHash] = stored
	sub.IsActive = active
	sub.Version = stored.Version
	return nil
}

func (f *fakeSubscriberStore) set(phoneHash string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[phoneHash] = models.Subscriber{ID: uuid.NewString(), PhoneHash: phoneHash, IsActive: active}
}

// fakeVerdictStore is an in-memory L2 tier
type fakeVerdictStore struct {
	mu      sync.Mutex
	entries map[string]bool
	finds   int
	saves   int
	findErr error
	saveErr error
}

func newFakeVerdictStore() *fakeVerdictStore {
	return &fakeVerdictStore{entries: make(map[string]bool)}
}

func (f *fakeVerdictStore) FindURLReputations(ctx context.Context, urlHashes []string) (map[string]models.URLReputationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make(map[string]models.URLReputationEntry)
	for _, h := range urlHashes {
		if phishing, ok := f.entries[h]; ok {
			out[h] = models.URLReputationEntry{URLHash: h, IsPhishing: phishing}
		}
	}
	return out, nil
}

func (f *fakeVerdictStore) SaveURLReputation(ctx context.Context, urlHash string, isPhishing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.entries[urlHash] = isPhishing
	return nil
}

func (f *fakeVerdictStore) get(urlHash string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[urlHash]
	return v, ok
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Check(ctx context.Context, url string) (models.Verdict, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(models.Verdict), args.Error(1)
}

type mockPolicy struct {
	mock.Mock
}

func (m *mockPolicy) Evaluate(ctx context.Context, record *models.MessageRecord) (models.MessageStatus, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(models.MessageStatus), args.Error(1)
}

type mockSubscriptions struct {
	mock.Mock
}

func (m *mockSubscriptions) ManageSubscription(ctx context.Context, phoneNumber string, command models.Command) error {
	args := m.Called(ctx, phoneNumber, command)
	return args.Error(0)
}

func (m *mockSubscriptions) FindByPhoneHash(ctx context.Context, phoneHash string) (*models.Subscriber, error) {
	args := m.Called(ctx, phoneHash)
	if sub := args.Get(0); sub != nil {
		return sub.(*models.Subscriber), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockURLCache struct {
	mock.Mock
}

func (m *mockURLCache) ContainsPhishing(ctx context.Context, urls []string) (bool, error) {
	args := m.Called(ctx, urls)
	return args.Bool(0), args.Error(1)
}

type mockRetentionStore struct {
	mock.Mock
}

func (m *mockRetentionStore) DeleteMessagesBefore(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteURLReputationsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func testRegistry() *metrics.Registry {
	return metrics.NewRegistry()
}
