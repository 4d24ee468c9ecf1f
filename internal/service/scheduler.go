package service

import (
	"context"
	"sync"
	"time"

	"phishguard/internal/constants"
	"phishguard/internal/metrics"
	"phishguard/internal/models"

	"github.com/sirupsen/logrus"
)

// RetentionStore deletes rows older than a threshold
type RetentionStore interface {
	DeleteMessagesBefore(ctx context.Context, threshold time.Time) (int64, error)
	DeleteURLReputationsBefore(ctx context.Context, threshold time.Time) (int64, error)
}

type Scheduler struct {
	store    RetentionStore
	config   models.RetentionConfig
	logger   *logrus.Logger
	metrics  *metrics.Registry
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewScheduler(store RetentionStore, config models.RetentionConfig, logger *logrus.Logger, registry *metrics.Registry) *Scheduler {
	if config.IntervalHours <= 0 {
		config.IntervalHours = constants.DefaultCleanupIntervalHour
	}
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &Scheduler{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: registry,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.config.IntervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting retention scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.purge(ctx, "url_analysis_cache", s.config.URLCacheDays, s.store.DeleteURLReputationsBefore)
	s.purge(ctx, "sms_messages", s.config.MessageDays, s.store.DeleteMessagesBefore)
}

// purge skips tables whose retention is disabled (days <= 0)
func (s *Scheduler) purge(ctx context.Context, table string, days int, del func(context.Context, time.Time) (int64, error)) {
	fields := logrus.Fields{"table": table, "retention_days": days}
	if days <= 0 {
		s.logger.WithFields(fields).Info("Retention policy disabled, skipping cleanup")
		return
	}

	threshold := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := del(ctx, threshold)
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Failed to purge old rows")
		return
	}

	s.metrics.RetentionDeleted(table, deleted)
	s.logger.WithFields(fields).WithField(LogFieldCount, deleted).Info("Purged old rows")
}
