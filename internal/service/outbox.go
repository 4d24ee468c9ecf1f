package service

import (
	"context"

	"phishguard/internal/models"

	"github.com/sirupsen/logrus"
)

// OutboxPublisher hands a received message to asynchronous analysis
type OutboxPublisher interface {
	EnqueueForAnalysis(ctx context.Context, record *models.MessageRecord) (*models.OutboxEntry, error)
}

type outboxPublisher struct {
	store  MessageStore
	topic  string
	logger *logrus.Logger
}

func NewOutboxPublisher(store MessageStore, topic string, logger *logrus.Logger) OutboxPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &outboxPublisher{store: store, topic: topic, logger: logger}
}

// EnqueueForAnalysis moves the record to PENDING_ANALYSIS and records the analysis
// event in the same transaction. A conflict means another request got there first.
func (p *outboxPublisher) EnqueueForAnalysis(ctx context.Context, record *models.MessageRecord) (*models.OutboxEntry, error) {
	entry, err := p.store.MarkPendingWithOutbox(ctx, record, p.topic)
	if err != nil {
		return nil, storeWriteError("message", "enqueue message for analysis", record.ID, err)
	}

	p.logger.WithFields(logrus.Fields{
		LogFieldMessageID: record.ID,
		LogFieldOutboxID:  entry.ID,
		LogFieldTopic:     entry.Topic,
	}).Info("Saved outbox event for asynchronous analysis")
	return entry, nil
}
