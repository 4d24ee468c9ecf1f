// Package cache holds the in-process tier of the URL reputation cache.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// VerdictCache is a bounded, expiring map from raw URL to phishing verdict.
// It is safe for concurrent use.
type VerdictCache struct {
	lru *expirable.LRU[string, bool]
}

// NewVerdictCache creates a cache holding at most size entries, each living ttl.
// A zero ttl keeps entries until they are evicted by size.
func NewVerdictCache(size int, ttl time.Duration) *VerdictCache {
	if size <= 0 {
		size = 1
	}
	return &VerdictCache{lru: expirable.NewLRU[string, bool](size, nil, ttl)}
}

// Get returns the cached verdict for url.
func (c *VerdictCache) Get(url string) (phishing bool, ok bool) {
	return c.lru.Get(url)
}

// Put stores a conclusive verdict.
func (c *VerdictCache) Put(url string, phishing bool) {
	c.lru.Add(url, phishing)
}

// Len reports the number of live entries.
func (c *VerdictCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *VerdictCache) Purge() {
	c.lru.Purge()
}
