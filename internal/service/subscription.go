package service

import (
	"context"
	"errors"
	"time"

	"phishguard/internal/database"
	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/privacy"
	"phishguard/internal/retry"

	"github.com/sirupsen/logrus"
)

// SubscriberStore is the persistence behind subscription state
type SubscriberStore interface {
	GetSubscriberByHash(ctx context.Context, phoneHash string) (*models.Subscriber, error)
	CreateSubscriber(ctx context.Context, sub *models.Subscriber) error
	UpdateSubscriberActive(ctx context.Context, sub *models.Subscriber, active bool) error
}

// SubscriptionService applies START/STOP commands
type SubscriptionService interface {
	ManageSubscription(ctx context.Context, phoneNumber string, command models.Command) error
	FindByPhoneHash(ctx context.Context, phoneHash string) (*models.Subscriber, error)
}

type subscriptionService struct {
	store   SubscriberStore
	backoff *retry.Backoff
	logger  *logrus.Logger
	metrics *metrics.Registry
}

func NewSubscriptionService(store SubscriberStore, cfg models.SubscriptionConfig, logger *logrus.Logger, registry *metrics.Registry) SubscriptionService {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &subscriptionService{
		store: store,
		backoff: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: time.Duration(cfg.DelayMs) * time.Millisecond,
			Multiplier:   cfg.Multiplier,
			MaxAttempts:  cfg.MaxAttempts,
		}),
		logger:  logger,
		metrics: registry,
	}
}

// ManageSubscription moves the sender to the state the command asks for. Races with
// a concurrent writer are retried with backoff; exhausting the attempts returns the conflict.
func (s *subscriptionService) ManageSubscription(ctx context.Context, phoneNumber string, command models.Command) error {
	attempt := 0
	return s.backoff.RetryWithPredicate(ctx, func() error {
		attempt++
		err := s.apply(ctx, phoneNumber, command)
		if err != nil && isConflict(err) {
			s.logger.WithFields(logrus.Fields{
				LogFieldPhone:       privacy.MaskPhoneNumber(phoneNumber),
				LogFieldAttempt:     attempt,
				LogFieldMaxAttempts: s.backoff.MaxAttempts(),
			}).Warn("Subscription write lost a race, retrying")
		}
		return err
	}, isConflict)
}

func (s *subscriptionService) apply(ctx context.Context, phoneNumber string, command models.Command) error {
	phoneHash := hashing.Hash(phoneNumber)
	target := command.TargetActive()
	fields := logrus.Fields{
		LogFieldPhone:   privacy.MaskPhoneNumber(phoneNumber),
		LogFieldCommand: command,
	}

	sub, err := s.store.GetSubscriberByHash(ctx, phoneHash)
	if err != nil {
		return apperrors.NewDatabaseError("find subscriber", err)
	}

	if sub != nil {
		if sub.IsActive == target {
			s.logger.WithFields(fields).Debug("Subscriber already in requested state, no action needed")
			return nil
		}
		if err := s.store.UpdateSubscriberActive(ctx, sub, target); err != nil {
			return subscriberWriteError("update subscriber", err)
		}
	} else {
		sub = &models.Subscriber{
			PhoneHash:   phoneHash,
			PhoneNumber: phoneNumber,
			IsActive:    target,
		}
		if err := s.store.CreateSubscriber(ctx, sub); err != nil {
			return subscriberWriteError("create subscriber", err)
		}
	}

	s.metrics.SubscriptionChanged(string(command))
	s.logger.WithFields(fields).WithField("active", target).Info("Subscription updated")
	return nil
}

func (s *subscriptionService) FindByPhoneHash(ctx context.Context, phoneHash string) (*models.Subscriber, error) {
	sub, err := s.store.GetSubscriberByHash(ctx, phoneHash)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find subscriber", err)
	}
	return sub, nil
}

func subscriberWriteError(operation string, err error) error {
	if errors.Is(err, database.ErrDuplicate) || errors.Is(err, database.ErrVersionConflict) {
		return apperrors.NewConflictError("subscriber", err)
	}
	return apperrors.NewDatabaseError(operation, err)
}
