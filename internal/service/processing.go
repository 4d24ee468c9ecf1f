package service

import (
	"context"
	"strings"
	"time"

	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/privacy"
	"phishguard/internal/tracing"

	"github.com/sirupsen/logrus"
)

// SMSProcessingService is the ingestion entry point
type SMSProcessingService interface {
	ProcessSMS(ctx context.Context, sms models.IncomingSMS) (*models.ProcessResult, error)
	GetMessage(ctx context.Context, id string) (*models.MessageRecord, error)
}

type smsProcessingService struct {
	servicePhoneNumber string
	ledger             MessageLedger
	router             CommandRouter
	outbox             OutboxPublisher
	logger             *logrus.Logger
	metrics            *metrics.Registry
}

func NewSMSProcessingService(servicePhoneNumber string, ledger MessageLedger, router CommandRouter, outbox OutboxPublisher, logger *logrus.Logger, registry *metrics.Registry) SMSProcessingService {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &smsProcessingService{
		servicePhoneNumber: strings.TrimSpace(servicePhoneNumber),
		ledger:             ledger,
		router:             router,
		outbox:             outbox,
		logger:             logger,
		metrics:            registry,
	}
}

// ProcessSMS records the message and either resolves a command synchronously or
// hands the message to asynchronous analysis. It never waits for analysis.
func (s *smsProcessingService) ProcessSMS(ctx context.Context, sms models.IncomingSMS) (*models.ProcessResult, error) {
	start := time.Now()
	defer func() { s.metrics.SMSLatency(time.Since(start)) }()

	ctx, span := tracing.StartSpan(ctx, "sms.process")
	defer span.End()

	s.logger.WithFields(logrus.Fields{
		LogFieldSender:    privacy.MaskPhoneNumber(sms.Sender),
		LogFieldRecipient: privacy.MaskPhoneNumber(sms.Recipient),
	}).Debug("Processing inbound SMS")

	record, err := s.ledger.CreateOrRetrieve(ctx, sms.Sender, sms.Recipient, sms.Message)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	var status models.ProcessingStatus
	if s.isServiceNumber(sms.Recipient) {
		status, err = s.router.Route(ctx, record)
	} else {
		status, err = s.routeForAnalysis(ctx, record)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.metrics.SMSProcessed(string(status))
	return &models.ProcessResult{MessageID: record.ID, ProcessingStatus: status}, nil
}

func (s *smsProcessingService) isServiceNumber(recipient string) bool {
	return s.servicePhoneNumber != "" && strings.TrimSpace(recipient) == s.servicePhoneNumber
}

// routeForAnalysis publishes only records still in RECEIVED. Anything else is a
// duplicate submission and reports the record's current outcome.
func (s *smsProcessingService) routeForAnalysis(ctx context.Context, record *models.MessageRecord) (models.ProcessingStatus, error) {
	if record.Status != models.StatusReceived {
		s.logger.WithFields(logrus.Fields{
			LogFieldMessageID: record.ID,
			LogFieldStatus:    record.Status,
		}).Warn("Duplicate request detected, returning original outcome")
		return models.PublicStatus(record.Status), nil
	}

	if _, err := s.outbox.EnqueueForAnalysis(ctx, record); err != nil {
		if !isConflict(err) {
			return "", err
		}
		current, findErr := s.ledger.FindByID(ctx, record.ID)
		if findErr != nil || current == nil {
			return "", err
		}
		return models.PublicStatus(current.Status), nil
	}
	return models.ProcessingAccepted, nil
}

// GetMessage returns the stored record or nil when absent
func (s *smsProcessingService) GetMessage(ctx context.Context, id string) (*models.MessageRecord, error) {
	return s.ledger.FindByID(ctx, id)
}
