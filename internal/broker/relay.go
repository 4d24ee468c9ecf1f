package broker

import (
	"context"
	"time"

	"phishguard/internal/metrics"
	"phishguard/internal/models"

	"github.com/sirupsen/logrus"
)

// OutboxStore is the outbox table the relay drains
type OutboxStore interface {
	ListOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	DeleteOutboxEvent(ctx context.Context, id string) error
	CountOutboxEvents(ctx context.Context) (int, error)
}

// Relay moves outbox rows to the broker. Delivery is at-least-once: a row is
// deleted only after its publish is acknowledged, and the outbox id doubles as
// the broker deduplication id.
type Relay struct {
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *logrus.Logger
	metrics   *metrics.Registry
}

func NewRelay(store OutboxStore, publisher Publisher, interval time.Duration, batchSize int, logger *logrus.Logger, registry *metrics.Registry) *Relay {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		metrics:   registry,
	}
}

// Start polls until ctx is cancelled
func (r *Relay) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.interval.String()).Info("Starting outbox relay")

	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Warn("Outbox relay pass failed, will retry")
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes pending rows in creation order until the table is empty or a
// publish fails. It returns how many rows were relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	relayed := 0
	defer r.reportBacklog(ctx)

	for {
		entries, err := r.store.ListOutboxEvents(ctx, r.batchSize)
		if err != nil {
			return relayed, err
		}
		if len(entries) == 0 {
			return relayed, nil
		}

		for _, entry := range entries {
			if err := r.publisher.Publish(ctx, entry.Topic, entry.ID, []byte(entry.Payload)); err != nil {
				// stop here so later rows are not published ahead of this one
				return relayed, err
			}
			if err := r.store.DeleteOutboxEvent(ctx, entry.ID); err != nil {
				return relayed, err
			}
			relayed++
			r.metrics.OutboxRelayed(entry.Topic)
			r.logger.WithFields(logrus.Fields{
				"outbox_id": entry.ID,
				"topic":     entry.Topic,
			}).Debug("Relayed outbox event")
		}

		if len(entries) < r.batchSize {
			return relayed, nil
		}
	}
}

func (r *Relay) reportBacklog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := r.store.CountOutboxEvents(ctx)
	if err != nil {
		return
	}
	r.metrics.OutboxBacklog(n)
}
