// Package redis decorates the projected readers with a read-through detail
// cache. The projection engine invalidates entries for every aggregate a
// committed batch touched, so a cached detail is at most one commit stale on
// other nodes and never stale on the committing one.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/projection"
	"github.com/servicecrm/backend/repository"
)

// DetailCache caches Detail reads for both aggregate kinds and implements
// projection.Invalidator. Cache faults never fail a read; they fall through
// to the inner reader.
type DetailCache struct {
	client *redislib.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDetailCache(client *redislib.Client, ttl time.Duration, logger *zap.Logger) *DetailCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailCache{client: client, ttl: ttl, logger: logger}
}

// Invalidate drops the detail entry for one aggregate.
func (c *DetailCache) Invalidate(ctx context.Context, kind eventstore.Kind, id string) {
	if err := c.client.Del(ctx, c.key(kind, id)).Err(); err != nil {
		c.logger.Warn("detail cache invalidation failed",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
}

func (c *DetailCache) key(kind eventstore.Kind, id string) string {
	return fmt.Sprintf("detail:%s:%s", kind, id)
}

func getThrough[T any](ctx context.Context, c *DetailCache, key string, load func(context.Context) (*T, error)) (*T, error) {
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var out T
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return &out, nil
		}
	} else if err != redislib.Nil {
		c.logger.Warn("detail cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(out); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("detail cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

// CachedCustomerReader wraps a CustomerReader, caching Detail only; listing
// queries stay uncached because their result shape depends on the filter.
type CachedCustomerReader struct {
	repository.CustomerReader
	cache *DetailCache
}

func NewCachedCustomerReader(inner repository.CustomerReader, cache *DetailCache) *CachedCustomerReader {
	return &CachedCustomerReader{CustomerReader: inner, cache: cache}
}

func (r *CachedCustomerReader) Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	return getThrough(ctx, r.cache, r.cache.key(eventstore.KindCustomer, id.String()), func(ctx context.Context) (*domain.CustomerState, error) {
		return r.CustomerReader.Detail(ctx, id)
	})
}

// CachedProductReader mirrors CachedCustomerReader for products.
type CachedProductReader struct {
	repository.ProductReader
	cache *DetailCache
}

func NewCachedProductReader(inner repository.ProductReader, cache *DetailCache) *CachedProductReader {
	return &CachedProductReader{ProductReader: inner, cache: cache}
}

func (r *CachedProductReader) Detail(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	return getThrough(ctx, r.cache, r.cache.key(eventstore.KindProduct, id.String()), func(ctx context.Context) (*domain.ProductState, error) {
		return r.ProductReader.Detail(ctx, id)
	})
}

// Interface checks against the uncached contracts.
var (
	_ repository.CustomerReader = (*CachedCustomerReader)(nil)
	_ repository.ProductReader  = (*CachedProductReader)(nil)
	_ projection.Invalidator    = (*DetailCache)(nil)
)
