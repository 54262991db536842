// Package resultcache caches duplicate detection results keyed by the
// fingerprints of the configuration, population and candidate.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const keyPrefix = "clover:duplicates:"

// Store is the key-value backend. A missing key returns redis.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
}

// Cache stores detection results. A nil *Cache is a disabled cache: every
// lookup misses and every store is dropped.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger ectologger.Logger
}

// New creates a cache over store with the given entry TTL
func New(store Store, ttl time.Duration, logger ectologger.Logger) *Cache {
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Key derives the cache key for one detection. Any change to the
// configuration, the population or the candidate yields a new key.
func Key(tenantID, entityType string, cfg models.MatchConfiguration, population []models.Record, candidate models.Record) string {
	return keyPrefix + tenantID + ":" + entityType + ":" + fingerprint.Key(
		fingerprint.Config(cfg),
		fingerprint.Records(population),
		fingerprint.Record(candidate),
	)
}

// Get returns a cached result. Backend failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (models.DetectionResult, bool) {
	if c == nil {
		return models.DetectionResult{}, false
	}

	ctx, span := tracing.StartSpan(ctx, "resultcache.Cache.Get")
	defer span.End()

	b, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
			return models.DetectionResult{}, false
		}
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to read cached detection result")
		return models.DetectionResult{}, false
	}

	var result models.DetectionResult
	if err := json.Unmarshal(b, &result); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		c.logger.WithContext(ctx).WithError(err).Warn("Discarding undecodable cached detection result")
		return models.DetectionResult{}, false
	}

	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return result, true
}

// Set stores a result. Failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, key string, result models.DetectionResult) {
	if c == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "resultcache.Cache.Set")
	defer span.End()

	b, err := json.Marshal(result)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to encode detection result")
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to cache detection result")
	}
}
