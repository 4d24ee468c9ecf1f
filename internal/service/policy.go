package service

import (
	"context"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/models"

	"github.com/sirupsen/logrus"
)

// URLExtractor finds candidate URLs in free text
type URLExtractor interface {
	ExtractURLs(text string) []string
}

// MessagePolicy decides the final status of a message awaiting analysis
type MessagePolicy interface {
	Evaluate(ctx context.Context, record *models.MessageRecord) (models.MessageStatus, error)
}

type messagePolicy struct {
	subscriptions SubscriptionService
	extractor     URLExtractor
	cache         URLReputationCache
	logger        *logrus.Logger
}

func NewMessagePolicy(subscriptions SubscriptionService, extractor URLExtractor, cache URLReputationCache, logger *logrus.Logger) MessagePolicy {
	if logger == nil {
		logger = logrus.New()
	}
	return &messagePolicy{subscriptions: subscriptions, extractor: extractor, cache: cache, logger: logger}
}

// Evaluate only inspects URLs for active subscribers.
func (p *messagePolicy) Evaluate(ctx context.Context, record *models.MessageRecord) (models.MessageStatus, error) {
	sub, err := p.subscriptions.FindByPhoneHash(ctx, hashing.Hash(record.Recipient))
	if err != nil {
		return "", apperrors.WrapRetryable(err, apperrors.ErrCodeDatabaseQuery, "subscriber lookup failed")
	}
	if sub == nil || !sub.IsActive {
		p.logger.WithField(LogFieldMessageID, record.ID).Debug("Recipient is not an active subscriber, allowing without analysis")
		return models.StatusAllowedNotSubscribed, nil
	}

	urls := p.extractor.ExtractURLs(record.Content)
	if len(urls) == 0 {
		return models.StatusAllowedNoURLs, nil
	}

	phishing, err := p.cache.ContainsPhishing(ctx, urls)
	if err != nil {
		return "", err
	}
	if phishing {
		p.logger.WithField(LogFieldMessageID, record.ID).Debug("Phishing URL detected, rejecting message")
		return models.StatusRejectedPhishing, nil
	}
	return models.StatusAllowedAnalyzedSafe, nil
}
