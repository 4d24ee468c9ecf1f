package service

import (
	"context"
	"testing"
	"time"

	"phishguard/internal/cache"
	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/metrics"
	"phishguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type urlCacheFixture struct {
	l1       *cache.VerdictCache
	l2       *fakeVerdictStore
	oracle   *mockOracle
	registry *metrics.Registry
	cache    URLReputationCache
}

func newURLCacheFixture(withL1 bool) *urlCacheFixture {
	f := &urlCacheFixture{
		l2:       newFakeVerdictStore(),
		oracle:   &mockOracle{},
		registry: testRegistry(),
	}
	var l1 VerdictCache
	if withL1 {
		f.l1 = cache.NewVerdictCache(100, time.Hour)
		l1 = f.l1
	}
	f.cache = NewURLReputationCache(l1, f.l2, f.oracle, quietLogger(), f.registry)
	return f
}

func (f *urlCacheFixture) access(level, outcome string) float64 {
	return f.registry.CounterValue(metrics.URLCacheAccessTotal, map[string]string{"level": level, "outcome": outcome})
}

func TestURLCache_EmptyInput(t *testing.T) {
	f := newURLCacheFixture(true)
	phishing, err := f.cache.ContainsPhishing(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, phishing)
	assert.Equal(t, 0, f.l2.finds)
}

func TestURLCache_L1HitShortCircuits(t *testing.T) {
	f := newURLCacheFixture(true)
	f.l1.Put("https://evil.example", true)

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://evil.example", "https://other.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	assert.Equal(t, 0, f.l2.finds)
	f.oracle.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestURLCache_AllSafeInL1SkipsLowerTiers(t *testing.T) {
	f := newURLCacheFixture(true)
	f.l1.Put("https://a.example", false)
	f.l1.Put("https://b.example", false)

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://a.example", "https://b.example", "https://a.example"})
	require.NoError(t, err)
	assert.False(t, phishing)
	assert.Equal(t, 0, f.l2.finds)
	assert.Equal(t, float64(2), f.access(metrics.CacheLevelL1, metrics.CacheHit))
}

func TestURLCache_L2HitWarmsL1(t *testing.T) {
	f := newURLCacheFixture(true)
	f.l2.entries[hashing.Hash("https://safe.example")] = false
	f.l2.entries[hashing.Hash("https://evil.example")] = true

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://safe.example", "https://evil.example", "https://new.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	assert.Equal(t, 1, f.l2.finds)
	f.oracle.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)

	// every L2 hit is copied up, not just the first threat
	v, ok := f.l1.Get("https://safe.example")
	assert.True(t, ok)
	assert.False(t, v)
	v, ok = f.l1.Get("https://evil.example")
	assert.True(t, ok)
	assert.True(t, v)
	_, ok = f.l1.Get("https://new.example")
	assert.False(t, ok)
}

func TestURLCache_OracleVerdictPopulatesBothTiers(t *testing.T) {
	f := newURLCacheFixture(true)
	f.oracle.On("Check", mock.Anything, "https://safe.example").Return(models.VerdictSafe, nil).Once()
	f.oracle.On("Check", mock.Anything, "https://evil.example").Return(models.VerdictThreatFound, nil).Once()

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://safe.example", "https://evil.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	f.oracle.AssertExpectations(t)

	for url, want := range map[string]bool{"https://safe.example": false, "https://evil.example": true} {
		v, ok := f.l1.Get(url)
		assert.True(t, ok, url)
		assert.Equal(t, want, v, url)
		v, ok = f.l2.get(hashing.Hash(url))
		assert.True(t, ok, url)
		assert.Equal(t, want, v, url)
	}

	// second pass answers from L1 alone
	phishing, err = f.cache.ContainsPhishing(context.Background(), []string{"https://evil.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	assert.Equal(t, 1, f.l2.finds)
}

func TestURLCache_OracleShortCircuits(t *testing.T) {
	f := newURLCacheFixture(true)
	f.oracle.On("Check", mock.Anything, "https://evil.example").Return(models.VerdictThreatFound, nil).Once()

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://evil.example", "https://later.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	f.oracle.AssertNotCalled(t, "Check", mock.Anything, "https://later.example")
}

func TestURLCache_InconclusiveNeverCached(t *testing.T) {
	f := newURLCacheFixture(true)
	f.oracle.On("Check", mock.Anything, "https://odd.example").Return(models.VerdictInconclusive, nil).Twice()

	for i := 0; i < 2; i++ {
		phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://odd.example"})
		require.NoError(t, err)
		assert.False(t, phishing)
	}

	_, ok := f.l1.Get("https://odd.example")
	assert.False(t, ok)
	assert.Equal(t, 0, f.l2.saves)
	f.oracle.AssertExpectations(t)
}

func TestURLCache_OracleErrorPropagates(t *testing.T) {
	f := newURLCacheFixture(true)
	oracleErr := apperrors.NewOracleError("webrisk", 503, assert.AnError)
	f.oracle.On("Check", mock.Anything, mock.Anything).Return(models.VerdictInconclusive, oracleErr)

	_, err := f.cache.ContainsPhishing(context.Background(), []string{"https://x.example"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, 0, f.l2.saves)
}

func TestURLCache_L2ErrorPropagates(t *testing.T) {
	f := newURLCacheFixture(true)
	f.l2.findErr = assert.AnError

	_, err := f.cache.ContainsPhishing(context.Background(), []string{"https://x.example"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeDatabaseQuery, apperrors.GetCode(err))
	f.oracle.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestURLCache_L2SaveFailureStillReturnsVerdict(t *testing.T) {
	f := newURLCacheFixture(true)
	f.l2.saveErr = assert.AnError
	f.oracle.On("Check", mock.Anything, "https://evil.example").Return(models.VerdictThreatFound, nil)

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://evil.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	v, ok := f.l1.Get("https://evil.example")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestURLCache_BypassesMissingL1(t *testing.T) {
	f := newURLCacheFixture(false)
	f.l2.entries[hashing.Hash("https://evil.example")] = true

	phishing, err := f.cache.ContainsPhishing(context.Background(), []string{"https://evil.example"})
	require.NoError(t, err)
	assert.True(t, phishing)
	assert.Equal(t, float64(0), f.access(metrics.CacheLevelL1, metrics.CacheMiss))

	f.oracle.On("Check", mock.Anything, "https://new.example").Return(models.VerdictSafe, nil)
	phishing, err = f.cache.ContainsPhishing(context.Background(), []string{"https://new.example"})
	require.NoError(t, err)
	assert.False(t, phishing)
	v, ok := f.l2.get(hashing.Hash("https://new.example"))
	assert.True(t, ok)
	assert.False(t, v)
}
