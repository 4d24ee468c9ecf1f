package service

import (
	"context"
	"errors"

	"phishguard/internal/database"
	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/models"

	"github.com/sirupsen/logrus"
)

// MessageStore is the persistence the ledger and outbox publisher need
type MessageStore interface {
	CreateMessage(ctx context.Context, record *models.MessageRecord) error
	GetMessage(ctx context.Context, id string) (*models.MessageRecord, error)
	GetMessageByIdempotencyKey(ctx context.Context, key string) (*models.MessageRecord, error)
	UpdateMessageStatus(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) error
	MarkPendingWithOutbox(ctx context.Context, record *models.MessageRecord, topic string) (*models.OutboxEntry, error)
}

// MessageLedger owns creation and status transitions of message records
type MessageLedger interface {
	CreateOrRetrieve(ctx context.Context, sender, recipient, content string) (*models.MessageRecord, error)
	UpdateStatus(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) error
	FindByID(ctx context.Context, id string) (*models.MessageRecord, error)
}

type messageLedger struct {
	store  MessageStore
	logger *logrus.Logger
}

func NewMessageLedger(store MessageStore, logger *logrus.Logger) MessageLedger {
	if logger == nil {
		logger = logrus.New()
	}
	return &messageLedger{store: store, logger: logger}
}

// CreateOrRetrieve returns the record for this sender, recipient and content,
// creating it in RECEIVED on first sight. Losing an insert race reads the winner.
func (l *messageLedger) CreateOrRetrieve(ctx context.Context, sender, recipient, content string) (*models.MessageRecord, error) {
	key := hashing.IdempotencyKey(sender, recipient, content)

	existing, err := l.store.GetMessageByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find message by idempotency key", err)
	}
	if existing != nil {
		return existing, nil
	}

	record := &models.MessageRecord{
		IdempotencyKey: key,
		Sender:         sender,
		Recipient:      recipient,
		Content:        content,
		Status:         models.StatusReceived,
	}
	err = l.store.CreateMessage(ctx, record)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, database.ErrDuplicate) {
		return nil, apperrors.NewDatabaseError("create message", err)
	}

	l.logger.Debug("Concurrent submission created the message first, reading it back")
	existing, err = l.store.GetMessageByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find message by idempotency key", err)
	}
	if existing == nil {
		return nil, apperrors.NewConflictError("message", database.ErrDuplicate)
	}
	return existing, nil
}

// UpdateStatus writes any status; the stored version must still match the record's.
func (l *messageLedger) UpdateStatus(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) error {
	previous := record.Status
	if err := l.store.UpdateMessageStatus(ctx, record, status); err != nil {
		return storeWriteError("message", "update message status", record.ID, err)
	}

	l.logger.WithFields(logrus.Fields{
		LogFieldMessageID:  record.ID,
		LogFieldPrevStatus: previous,
		LogFieldStatus:     status,
	}).Debug("Message status updated")
	return nil
}

// FindByID returns nil when no record exists
func (l *messageLedger) FindByID(ctx context.Context, id string) (*models.MessageRecord, error) {
	record, err := l.store.GetMessage(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find message", err)
	}
	return record, nil
}

// storeWriteError maps storage sentinels onto the error taxonomy
func storeWriteError(resource, operation, id string, err error) error {
	switch {
	case errors.Is(err, database.ErrVersionConflict):
		return apperrors.NewConflictError(resource, err).WithContext(LogFieldMessageID, id)
	case errors.Is(err, database.ErrNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, resource+" not found").WithContext("identifier", id)
	default:
		return apperrors.NewDatabaseError(operation, err)
	}
}

// isConflict reports an optimistic-concurrency or uniqueness race
func isConflict(err error) bool {
	return apperrors.Is(err, apperrors.ErrCodeConflict)
}
