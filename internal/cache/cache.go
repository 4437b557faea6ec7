// Package cache keeps article keyword sets in Redis in front of the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eventdetection/event-detection/internal/keywords"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/metrics"
	pkgredis "github.com/eventdetection/event-detection/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "keywords:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Loader reads a keyword set from durable storage. A nil set with a nil
// error means the article has no keywords yet.
type Loader interface {
	ArticleKeywords(ctx context.Context, articleID string) (keywords.KeywordSet, error)
}

// KeywordCache holds extracted keyword sets in Redis, computing each at most
// once until it is invalidated.
type KeywordCache struct {
	backend Backend
	loader  Loader
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend that falls back to loader. m may be nil.
func New(backend Backend, loader Loader, ttl time.Duration, m *metrics.Metrics) *KeywordCache {
	return &KeywordCache{
		backend: backend,
		loader:  loader,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "keyword-cache"),
	}
}

func key(articleID string) string {
	return keyPrefix + articleID
}

// Get returns the cached set for an article. Backend failures count as
// misses.
func (c *KeywordCache) Get(ctx context.Context, articleID string) (keywords.KeywordSet, bool) {
	k := key(articleID)
	data, err := c.backend.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var kw keywords.KeywordSet
	if err := json.Unmarshal(data, &kw); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return kw, true
}

// Set caches an article's keyword set.
func (c *KeywordCache) Set(ctx context.Context, articleID string, kw keywords.KeywordSet) {
	k := key(articleID)
	data, err := json.Marshal(kw)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached set for an article, or calls compute and
// caches its result. Concurrent misses for one article share a single call.
// A cached set is reused until Invalidate or InvalidateAll removes it.
func (c *KeywordCache) GetOrCompute(
	ctx context.Context,
	articleID string,
	compute func(ctx context.Context) (keywords.KeywordSet, error),
) (keywords.KeywordSet, bool, error) {
	if kw, ok := c.Get(ctx, articleID); ok {
		return kw, true, nil
	}
	val, err, _ := c.group.Do(articleID, func() (interface{}, error) {
		kw, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, articleID, kw)
		return kw, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(keywords.KeywordSet), false, nil
}

// Keywords returns an article's keyword set from the cache, loading it from
// the loader on a miss.
func (c *KeywordCache) Keywords(ctx context.Context, articleID string) (keywords.KeywordSet, error) {
	kw, _, err := c.GetOrCompute(ctx, articleID, func(ctx context.Context) (keywords.KeywordSet, error) {
		kw, err := c.loader.ArticleKeywords(ctx, articleID)
		if err != nil {
			return nil, err
		}
		if kw == nil {
			return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "keywords for article %s not extracted", articleID)
		}
		return kw, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading keywords: %w", err)
	}
	return kw, nil
}

// Invalidate drops the cached sets of the given articles.
func (c *KeywordCache) Invalidate(ctx context.Context, articleIDs ...string) error {
	keys := make([]string, len(articleIDs))
	for i, id := range articleIDs {
		keys[i] = key(id)
	}
	if err := c.backend.Del(ctx, keys...); err != nil {
		return fmt.Errorf("invalidating keywords: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached keyword set.
func (c *KeywordCache) InvalidateAll(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating keyword cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since the cache was created.
func (c *KeywordCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *KeywordCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *KeywordCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
