package service

import (
	"context"
	"strings"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/tracing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const deadLetterWriteAttempts = 3

// AnalysisWorker disposes of analysis deliveries from the broker
type AnalysisWorker interface {
	// Handle processes one delivery. A non-nil error is retryable and asks the
	// broker to redeliver; every other outcome is final.
	Handle(ctx context.Context, payload string) error
	// HandleDeadLetter fails closed for a message that exhausted its retries.
	HandleDeadLetter(ctx context.Context, payload string) error
}

type analysisWorker struct {
	ledger  MessageLedger
	policy  MessagePolicy
	logger  *logrus.Logger
	errs    *apperrors.Logger
	metrics *metrics.Registry
}

func NewAnalysisWorker(ledger MessageLedger, policy MessagePolicy, logger *logrus.Logger, registry *metrics.Registry) AnalysisWorker {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &analysisWorker{
		ledger:  ledger,
		policy:  policy,
		logger:  logger,
		errs:    apperrors.FromLogrus(logger),
		metrics: registry,
	}
}

func (w *analysisWorker) Handle(ctx context.Context, payload string) error {
	ctx, span := tracing.StartSpan(ctx, "analysis_worker.handle")
	defer span.End()

	messageID, err := uuid.Parse(strings.TrimSpace(payload))
	if err != nil {
		w.logger.WithField("payload", truncatePayload(payload)).Error("Received malformed payload, discarding without retry")
		w.metrics.ConsumerOutcome(metrics.OutcomeMalformedPayload)
		return nil
	}
	id := messageID.String()
	span.SetAttributes(attribute.String(LogFieldMessageID, id))
	fields := logrus.Fields{LogFieldMessageID: id}

	record, err := w.ledger.FindByID(ctx, id)
	if err != nil {
		// storage hiccup; redeliver rather than guess
		w.errs.LogWarn(err, "Failed to load message for analysis", fields)
		return apperrors.WrapRetryable(err, apperrors.ErrCodeDatabaseQuery, "message lookup failed")
	}
	if record == nil {
		w.logger.WithFields(fields).Warn("Analysis requested for a non-existent message, discarding")
		w.metrics.ConsumerOutcome(metrics.OutcomeMessageNotFound)
		return nil
	}
	if record.Status != models.StatusPendingAnalysis {
		w.logger.WithFields(fields).WithField(LogFieldStatus, record.Status).Warn("Message already processed, skipping analysis")
		w.metrics.ConsumerOutcome(metrics.OutcomeAlreadyProcessed)
		return nil
	}

	status, err := w.policy.Evaluate(ctx, record)
	if err != nil {
		if apperrors.IsRetryable(err) {
			tracing.RecordError(ctx, err)
			w.errs.LogWarn(err, "Transient failure during analysis, scheduling retry", fields)
			return err
		}
		w.failClosed(ctx, record, err)
		return nil
	}

	if err := w.ledger.UpdateStatus(ctx, record, status); err != nil {
		if isConflict(err) {
			return w.resolveConflict(ctx, id, err)
		}
		w.failClosed(ctx, record, err)
		return nil
	}

	w.metrics.ConsumerOutcome(successOutcome(status))
	w.logger.WithFields(fields).WithField(LogFieldStatus, status).Info("Message analysis completed")
	return nil
}

// failClosed handles unexpected, non-retryable analysis errors
func (w *analysisWorker) failClosed(ctx context.Context, record *models.MessageRecord, cause error) {
	fields := logrus.Fields{LogFieldMessageID: record.ID}
	tracing.RecordError(ctx, cause)
	w.errs.LogError(cause, "Unexpected error during analysis, rejecting message", fields)
	w.metrics.ConsumerOutcome(metrics.OutcomeUnexpectedError)

	if err := w.ledger.UpdateStatus(ctx, record, models.StatusRejectedAnalysisFailed); err != nil {
		w.errs.LogError(err, "Failed to mark message as analysis failed", fields)
	}
}

// resolveConflict handles a lost final write: another delivery already finished the record
func (w *analysisWorker) resolveConflict(ctx context.Context, id string, conflict error) error {
	current, err := w.ledger.FindByID(ctx, id)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeDatabaseQuery, "message lookup failed")
	}
	if current == nil || current.Status != models.StatusPendingAnalysis {
		w.logger.WithField(LogFieldMessageID, id).Warn("Message resolved concurrently, discarding duplicate result")
		w.metrics.ConsumerOutcome(metrics.OutcomeAlreadyProcessed)
		return nil
	}
	return conflict
}

func (w *analysisWorker) HandleDeadLetter(ctx context.Context, payload string) error {
	ctx, span := tracing.StartSpan(ctx, "analysis_worker.dead_letter")
	defer span.End()

	w.logger.WithField("payload", truncatePayload(payload)).Error("Message failed all processing attempts and reached the dead-letter topic")
	w.metrics.ConsumerOutcome(metrics.OutcomeDeadLetter)

	messageID, err := uuid.Parse(strings.TrimSpace(payload))
	if err != nil {
		return nil
	}
	id := messageID.String()
	fields := logrus.Fields{LogFieldMessageID: id}

	for attempt := 1; ; attempt++ {
		record, err := w.ledger.FindByID(ctx, id)
		if err != nil {
			w.errs.LogError(err, "Failed to load dead-lettered message", fields)
			return err
		}
		if record == nil {
			return nil
		}
		if record.Status != models.StatusPendingAnalysis {
			w.logger.WithFields(fields).WithField(LogFieldStatus, record.Status).Warn("Dead-lettered message already terminal, no action taken")
			return nil
		}

		err = w.ledger.UpdateStatus(ctx, record, models.StatusRejectedAnalysisFailed)
		if err == nil {
			w.logger.WithFields(fields).Warn("Pessimistically rejected message after repeated analysis failures")
			return nil
		}
		if !isConflict(err) || attempt >= deadLetterWriteAttempts {
			w.errs.LogError(err, "Failed to apply fail-closed rejection", fields)
			return err
		}
	}
}

func successOutcome(status models.MessageStatus) string {
	return "success_" + strings.ToLower(string(status))
}

func truncatePayload(payload string) string {
	const limit = 64
	if len(payload) <= limit {
		return payload
	}
	return payload[:limit] + "..."
}
