package service

import (
	"context"
	"time"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/hashing"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/privacy"
	"phishguard/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// VerdictCache is the in-process tier, keyed by raw URL
type VerdictCache interface {
	Get(url string) (phishing bool, ok bool)
	Put(url string, phishing bool)
}

// VerdictStore is the persistent tier, keyed by URL hash
type VerdictStore interface {
	FindURLReputations(ctx context.Context, urlHashes []string) (map[string]models.URLReputationEntry, error)
	SaveURLReputation(ctx context.Context, urlHash string, isPhishing bool) error
}

// ThreatOracle is the authoritative, expensive tier
type ThreatOracle interface {
	Check(ctx context.Context, url string) (models.Verdict, error)
}

// URLReputationCache answers whether any URL in a batch is known phishing
type URLReputationCache interface {
	ContainsPhishing(ctx context.Context, urls []string) (bool, error)
}

type urlReputationCache struct {
	l1      VerdictCache
	l2      VerdictStore
	oracle  ThreatOracle
	logger  *logrus.Logger
	metrics *metrics.Registry
}

// NewURLReputationCache wires the three tiers. A nil l1 bypasses the in-process tier.
func NewURLReputationCache(l1 VerdictCache, l2 VerdictStore, oracle ThreatOracle, logger *logrus.Logger, registry *metrics.Registry) URLReputationCache {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &urlReputationCache{l1: l1, l2: l2, oracle: oracle, logger: logger, metrics: registry}
}

// ContainsPhishing resolves distinct URLs tier by tier and stops at the first threat.
func (c *urlReputationCache) ContainsPhishing(ctx context.Context, urls []string) (bool, error) {
	if len(urls) == 0 {
		return false, nil
	}

	start := time.Now()
	defer func() { c.metrics.URLAnalysis(time.Since(start)) }()

	ctx, span := tracing.StartSpan(ctx, "url_cache.contains_phishing", attribute.Int(LogFieldURLCount, len(urls)))
	defer span.End()

	remaining := distinct(urls)

	phishing, remaining := c.checkL1(remaining)
	if phishing {
		c.logger.Debug("Phishing URL found in L1 cache, short-circuiting analysis")
		return true, nil
	}
	if len(remaining) == 0 {
		return false, nil
	}

	phishing, remaining, err := c.checkL2(ctx, remaining)
	if err != nil {
		tracing.RecordError(ctx, err)
		return false, err
	}
	if phishing {
		c.logger.Debug("Phishing URL found in L2 cache, short-circuiting analysis")
		return true, nil
	}
	if len(remaining) == 0 {
		return false, nil
	}

	c.logger.WithField(LogFieldURLCount, len(remaining)).Debug("URLs not in any cache, checking with threat oracle")
	for _, url := range remaining {
		phishing, err := c.checkOracle(ctx, url)
		if err != nil {
			tracing.RecordError(ctx, err)
			return false, err
		}
		if phishing {
			return true, nil
		}
	}
	return false, nil
}

func (c *urlReputationCache) checkL1(urls []string) (bool, []string) {
	if c.l1 == nil {
		c.logger.Warn("In-process URL cache unavailable, bypassing L1 check")
		return false, urls
	}

	misses := make([]string, 0, len(urls))
	for _, url := range urls {
		phishing, ok := c.l1.Get(url)
		if !ok {
			c.metrics.CacheAccess(metrics.CacheLevelL1, metrics.CacheMiss)
			misses = append(misses, url)
			continue
		}
		c.metrics.CacheAccess(metrics.CacheLevelL1, metrics.CacheHit)
		if phishing {
			return true, nil
		}
	}
	return false, misses
}

// checkL2 issues one batched lookup and warms L1 with every hit before deciding.
func (c *urlReputationCache) checkL2(ctx context.Context, urls []string) (bool, []string, error) {
	hashes := make([]string, len(urls))
	for i, url := range urls {
		hashes[i] = hashing.Hash(url)
	}

	found, err := c.l2.FindURLReputations(ctx, hashes)
	if err != nil {
		return false, nil, apperrors.WrapRetryable(err, apperrors.ErrCodeDatabaseQuery, "url reputation lookup failed")
	}

	phishingFound := false
	misses := make([]string, 0, len(urls))
	for i, url := range urls {
		entry, ok := found[hashes[i]]
		if !ok {
			c.metrics.CacheAccess(metrics.CacheLevelL2, metrics.CacheMiss)
			misses = append(misses, url)
			continue
		}
		c.metrics.CacheAccess(metrics.CacheLevelL2, metrics.CacheHit)
		if c.l1 != nil {
			c.l1.Put(url, entry.IsPhishing)
		}
		if entry.IsPhishing {
			phishingFound = true
		}
	}

	if phishingFound {
		return true, nil, nil
	}
	return false, misses, nil
}

// checkOracle caches conclusive verdicts in both tiers and never caches inconclusive ones.
func (c *urlReputationCache) checkOracle(ctx context.Context, url string) (bool, error) {
	verdict, err := c.oracle.Check(ctx, url)
	if err != nil {
		return false, err
	}

	fields := logrus.Fields{
		LogFieldURLHost: privacy.MaskURL(url),
		LogFieldVerdict: verdict,
	}
	if !verdict.Conclusive() {
		c.logger.WithFields(fields).Warn("Threat analysis was not conclusive, result will not be cached")
		return false, nil
	}

	phishing := verdict == models.VerdictThreatFound
	if c.l1 != nil {
		c.l1.Put(url, phishing)
	}
	if err := c.l2.SaveURLReputation(ctx, hashing.Hash(url), phishing); err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Failed to persist URL verdict")
	}

	c.logger.WithFields(fields).Debug("Saved conclusive URL verdict")
	return phishing, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
