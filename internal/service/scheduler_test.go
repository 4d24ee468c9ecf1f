package service

import (
	"context"
	"testing"
	"time"

	"phishguard/internal/metrics"
	"phishguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestScheduler_RunCleanup(t *testing.T) {
	store := &mockRetentionStore{}
	registry := testRegistry()
	scheduler := NewScheduler(store, models.RetentionConfig{URLCacheDays: 30, MessageDays: 180, IntervalHours: 24}, quietLogger(), registry)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	ctx := context.Background()
	store.On("DeleteURLReputationsBefore", ctx, now.AddDate(0, 0, -30)).Return(int64(4), nil).Once()
	store.On("DeleteMessagesBefore", ctx, now.AddDate(0, 0, -180)).Return(int64(2), nil).Once()

	scheduler.runCleanup(ctx)

	store.AssertExpectations(t)
	assert.Equal(t, float64(4), registry.CounterValue(metrics.RetentionDeletedTotal, map[string]string{"table": "url_analysis_cache"}))
	assert.Equal(t, float64(2), registry.CounterValue(metrics.RetentionDeletedTotal, map[string]string{"table": "sms_messages"}))
}

func TestScheduler_DisabledRetentionSkipsPurge(t *testing.T) {
	store := &mockRetentionStore{}
	scheduler := NewScheduler(store, models.RetentionConfig{URLCacheDays: 0, MessageDays: -1}, quietLogger(), testRegistry())

	scheduler.runCleanup(context.Background())

	store.AssertNotCalled(t, "DeleteURLReputationsBefore", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "DeleteMessagesBefore", mock.Anything, mock.Anything)
}

func TestScheduler_ErrorDoesNotStopOtherPurge(t *testing.T) {
	store := &mockRetentionStore{}
	scheduler := NewScheduler(store, models.RetentionConfig{URLCacheDays: 30, MessageDays: 90}, quietLogger(), testRegistry())

	store.On("DeleteURLReputationsBefore", mock.Anything, mock.Anything).Return(int64(0), assert.AnError).Once()
	store.On("DeleteMessagesBefore", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	scheduler.runCleanup(context.Background())

	store.AssertExpectations(t)
}

func TestScheduler_StartStop(t *testing.T) {
	store := &mockRetentionStore{}
	scheduler := NewScheduler(store, models.RetentionConfig{URLCacheDays: 30, MessageDays: 30, IntervalHours: 24}, quietLogger(), testRegistry())

	store.On("DeleteURLReputationsBefore", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	store.On("DeleteMessagesBefore", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not stop within timeout")
	}
}

func TestScheduler_StopSignal(t *testing.T) {
	store := &mockRetentionStore{}
	scheduler := NewScheduler(store, models.RetentionConfig{}, quietLogger(), testRegistry())

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not stop within timeout")
	}
}
