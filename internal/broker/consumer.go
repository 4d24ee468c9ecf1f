package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/metrics"
	"phishguard/internal/retry"
	"phishguard/internal/tracing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Handler processes one payload. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, payload string) error

// ConsumerOptions describes one durable pull consumer.
// MaxDeliveries counts every delivery; zero means unlimited.
// An empty DeadLetterSubject terminates exhausted deliveries instead of forwarding them.
type ConsumerOptions struct {
	Name              string
	Subject           string
	MaxDeliveries     int
	RetryDelay        time.Duration
	RetryMultiplier   float64
	MaxRetryDelay     time.Duration
	DeadLetterSubject string
	HandlerTimeout    time.Duration
}

// delivery is the part of jetstream.Msg the consumer relies on
type delivery interface {
	Data() []byte
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// errDeliveryBudgetSpent marks a redelivery that arrives after the last
// counted attempt, e.g. because that attempt crashed before settling.
var errDeliveryBudgetSpent = errors.New("delivery budget spent without settlement")

type action int

const (
	actionAck action = iota
	actionRetry
	actionDeadLetter
	actionTerminate
)

// Consumer runs a handler against a durable JetStream consumer and owns
// acknowledgement, retry scheduling and dead-lettering.
type Consumer struct {
	client    *Client
	publisher Publisher
	options   ConsumerOptions
	handler   Handler
	backoff   *retry.Backoff
	schedule  []time.Duration
	logger    *logrus.Logger
	metrics   *metrics.Registry
}

func NewConsumer(client *Client, options ConsumerOptions, handler Handler, logger *logrus.Logger, registry *metrics.Registry) *Consumer {
	return newConsumer(client, client, options, handler, logger, registry)
}

func newConsumer(client *Client, publisher Publisher, options ConsumerOptions, handler Handler, logger *logrus.Logger, registry *metrics.Registry) *Consumer {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	maxAttempts := options.MaxDeliveries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: options.RetryDelay,
		MaxDelay:     options.MaxRetryDelay,
		Multiplier:   options.RetryMultiplier,
		MaxAttempts:  maxAttempts,
	})
	return &Consumer{
		client:    client,
		publisher: publisher,
		options:   options,
		handler:   handler,
		backoff:   backoff,
		schedule:  backoff.Schedule(),
		logger:    logger,
		metrics:   registry,
	}
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	// Redelivery is unbounded on the server side; dispose enforces MaxDeliveries
	// so an exhausted message is always forwarded or terminated, never dropped.
	cons, err := c.client.js.CreateOrUpdateConsumer(ctx, c.client.config.Stream, jetstream.ConsumerConfig{
		Durable:       c.options.Name,
		FilterSubject: c.options.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		MaxDeliver:    -1,
	})
	if err != nil {
		return apperrors.NewBrokerError("create consumer", fmt.Errorf("failed to create consumer %s: %w", c.options.Name, err))
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.dispose(ctx, msg)
	})
	if err != nil {
		return apperrors.NewBrokerError("consume", fmt.Errorf("failed to start consumer %s: %w", c.options.Name, err))
	}

	c.logger.WithFields(logrus.Fields{
		"consumer":       c.options.Name,
		"subject":        c.options.Subject,
		"max_attempts":   c.options.MaxDeliveries,
		"retry_schedule": fmt.Sprint(c.schedule),
	}).Info("Consumer started")

	<-ctx.Done()
	cc.Stop()
	c.logger.WithField("consumer", c.options.Name).Info("Consumer stopped")
	return nil
}

// dispose runs the handler for one delivery and settles it with the broker
func (c *Consumer) dispose(ctx context.Context, msg delivery) {
	delivered, known := c.deliveryCount(msg)
	payload := string(msg.Data())

	ctx, span := tracing.StartSpan(ctx, "broker.dispose",
		attribute.String("consumer", c.options.Name),
		attribute.Int("delivery", delivered))
	defer span.End()

	fields := logrus.Fields{
		"consumer":     c.options.Name,
		"attempt":      delivered,
		"max_attempts": c.options.MaxDeliveries,
	}

	var err error
	if c.overBudget(delivered) {
		err = errDeliveryBudgetSpent
	} else {
		handlerCtx := ctx
		if c.options.HandlerTimeout > 0 {
			var cancel context.CancelFunc
			handlerCtx, cancel = context.WithTimeout(ctx, c.options.HandlerTimeout)
			defer cancel()
		}
		err = c.handler(handlerCtx, payload)
	}

	if err != nil && !known && c.options.MaxDeliveries > 0 {
		// without a delivery count the retry budget cannot be tracked
		c.logger.WithFields(fields).Warn("Delivery metadata unavailable, treating attempt as the last one")
		delivered = c.options.MaxDeliveries
	}

	switch c.decide(err, delivered) {
	case actionAck:
		c.settle(msg.Ack(), "ack", fields)

	case actionRetry:
		delay := c.backoff.GetNextDelay(delivered)
		c.metrics.ConsumerOutcome(metrics.OutcomeRetryScheduled)
		c.logger.WithFields(fields).WithError(err).WithField("delay", delay.String()).Warn("Delivery failed, scheduling redelivery")
		c.settle(msg.NakWithDelay(delay), "nak", fields)

	case actionDeadLetter:
		c.logger.WithFields(fields).WithError(err).Error("Delivery attempts exhausted, forwarding to dead-letter subject")
		msgID := payload
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			msgID = fmt.Sprintf("%s-%d", c.options.Name, meta.Sequence.Stream)
		}
		if pubErr := c.publisher.Publish(ctx, c.options.DeadLetterSubject, msgID, msg.Data()); pubErr != nil {
			c.logger.WithFields(fields).WithError(pubErr).Error("Failed to publish to dead-letter subject, scheduling redelivery")
			c.settle(msg.NakWithDelay(c.backoff.GetNextDelay(delivered)), "nak", fields)
			return
		}
		c.metrics.DeadLettered(c.options.DeadLetterSubject)
		c.settle(msg.Term(), "term", fields)

	case actionTerminate:
		c.logger.WithFields(fields).WithError(err).Error("Delivery attempts exhausted, dropping message")
		c.settle(msg.Term(), "term", fields)
	}
}

// deliveryCount reads the 1-based delivery number; known is false when the
// broker metadata cannot be read.
func (c *Consumer) deliveryCount(msg delivery) (delivered int, known bool) {
	meta, err := msg.Metadata()
	if err != nil || meta.NumDelivered == 0 {
		return 1, false
	}
	return int(meta.NumDelivered), true
}

func (c *Consumer) overBudget(delivered int) bool {
	return c.options.MaxDeliveries > 0 && delivered > c.options.MaxDeliveries
}

func (c *Consumer) decide(err error, delivered int) action {
	if err == nil {
		return actionAck
	}
	if c.options.MaxDeliveries > 0 && c.backoff.Exhausted(delivered) {
		if c.options.DeadLetterSubject != "" {
			return actionDeadLetter
		}
		return actionTerminate
	}
	return actionRetry
}

func (c *Consumer) settle(err error, op string, fields logrus.Fields) {
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warnf("Failed to %s delivery", op)
	}
}
