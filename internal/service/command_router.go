package service

import (
	"context"

	"phishguard/internal/models"
	"phishguard/internal/privacy"

	"github.com/sirupsen/logrus"
)

// CommandRouter resolves messages sent to the service number synchronously
type CommandRouter interface {
	Route(ctx context.Context, record *models.MessageRecord) (models.ProcessingStatus, error)
}

type commandRouter struct {
	ledger        MessageLedger
	subscriptions SubscriptionService
	logger        *logrus.Logger
}

func NewCommandRouter(ledger MessageLedger, subscriptions SubscriptionService, logger *logrus.Logger) CommandRouter {
	if logger == nil {
		logger = logrus.New()
	}
	return &commandRouter{ledger: ledger, subscriptions: subscriptions, logger: logger}
}

// Route applies START/STOP from the record's content and records the outcome.
// A record that already reached a terminal state reports that state again.
func (r *commandRouter) Route(ctx context.Context, record *models.MessageRecord) (models.ProcessingStatus, error) {
	if record.Status.IsTerminal() {
		r.logger.WithFields(logrus.Fields{
			LogFieldMessageID: record.ID,
			LogFieldStatus:    record.Status,
		}).Warn("Duplicate command submission, returning original outcome")
		return models.PublicStatus(record.Status), nil
	}

	fields := logrus.Fields{
		LogFieldMessageID: record.ID,
		LogFieldSender:    privacy.MaskPhoneNumber(record.Sender),
	}

	command, ok := models.ParseCommand(record.Content)
	if !ok {
		r.logger.WithFields(fields).Warn("Received invalid command on service number")
		return r.finish(ctx, record, models.StatusInvalidCommand)
	}

	r.logger.WithFields(fields).WithField(LogFieldCommand, command).Debug("Processing subscription command")
	if err := r.subscriptions.ManageSubscription(ctx, record.Sender, command); err != nil {
		return "", err
	}
	return r.finish(ctx, record, models.StatusCommandProcessed)
}

func (r *commandRouter) finish(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) (models.ProcessingStatus, error) {
	if err := r.ledger.UpdateStatus(ctx, record, status); err != nil {
		if !isConflict(err) {
			return "", err
		}
		current, findErr := r.ledger.FindByID(ctx, record.ID)
		if findErr != nil || current == nil {
			return "", err
		}
		return models.PublicStatus(current.Status), nil
	}
	return models.PublicStatus(status), nil
}
