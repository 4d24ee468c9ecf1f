package service

import (
	"context"
	"testing"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/models"
	"phishguard/internal/urlextract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMessagePolicy_Evaluate(t *testing.T) {
	active := &models.Subscriber{IsActive: true}
	inactive := &models.Subscriber{IsActive: false}

	tests := []struct {
		name       string
		subscriber *models.Subscriber
		content    string
		phishing   bool
		want       models.MessageStatus
		checksURLs bool
	}{
		{"not subscribed", nil, "visit https://evil.example", false, models.StatusAllowedNotSubscribed, false},
		{"inactive subscriber", inactive, "visit https://evil.example", false, models.StatusAllowedNotSubscribed, false},
		{"no urls", active, "just saying hi", false, models.StatusAllowedNoURLs, false},
		{"safe urls", active, "see https://good.example", false, models.StatusAllowedAnalyzedSafe, true},
		{"phishing url", active, "login at https://evil.example now", true, models.StatusRejectedPhishing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &mockSubscriptions{}
			cache := &mockURLCache{}
			policy := NewMessagePolicy(subs, urlextract.Extractor{}, cache, quietLogger())

			rec := &models.MessageRecord{ID: "m1", Recipient: "+15550002222", Content: tt.content}
			subs.On("FindByPhoneHash", mock.Anything, hashing.Hash(rec.Recipient)).Return(tt.subscriber, nil)
			if tt.checksURLs {
				cache.On("ContainsPhishing", mock.Anything, mock.Anything).Return(tt.phishing, nil).Once()
			}

			status, err := policy.Evaluate(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			cache.AssertExpectations(t)
			if !tt.checksURLs {
				cache.AssertNotCalled(t, "ContainsPhishing", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestMessagePolicy_PropagatesCacheError(t *testing.T) {
	subs := &mockSubscriptions{}
	cache := &mockURLCache{}
	policy := NewMessagePolicy(subs, urlextract.Extractor{}, cache, quietLogger())

	subs.On("FindByPhoneHash", mock.Anything, mock.Anything).Return(&models.Subscriber{IsActive: true}, nil)
	oracleErr := apperrors.NewOracleError("webrisk", 503, assert.AnError)
	cache.On("ContainsPhishing", mock.Anything, mock.Anything).Return(false, oracleErr)

	_, err := policy.Evaluate(context.Background(), &models.MessageRecord{Recipient: "+15550002222", Content: "https://x.example"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestMessagePolicy_PropagatesSubscriberError(t *testing.T) {
	subs := &mockSubscriptions{}
	policy := NewMessagePolicy(subs, urlextract.Extractor{}, &mockURLCache{}, quietLogger())

	subs.On("FindByPhoneHash", mock.Anything, mock.Anything).Return(nil, apperrors.NewDatabaseError("find subscriber", assert.AnError))

	_, err := policy.Evaluate(context.Background(), &models.MessageRecord{Recipient: "+15550002222"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeDatabaseQuery, apperrors.GetCode(err))
}
