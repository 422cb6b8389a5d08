package app

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ReportCache fronts a ResultCache with JSON encoding and in-process fill collapsing.
// A nil ReportCache or nil store computes every time.
type ReportCache struct {
	store  ResultCache
	logger *zap.Logger
	sf     singleflight.Group
}

func NewReportCache(store ResultCache, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{store: store, logger: logger}
}

// Forget drops a single key.
func (c *ReportCache) Forget(ctx context.Context, key string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Invalidate(ctx, key)
}

// ForgetPrefix drops every key starting with prefix.
func (c *ReportCache) ForgetPrefix(ctx context.Context, prefix string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.InvalidatePrefix(ctx, prefix)
}

// getOrCompute returns the cached value for key or runs produce and stores its result for ttl.
// With bypass set or ttl <= 0 the producer always runs and nothing is stored.
// Store failures are logged and the value is computed directly.
//
// Concurrent misses on one key share a single fill. The fill runs on a context detached from
// any caller's cancellation, so a caller that gives up only stops waiting for its own result.
func getOrCompute[T any](ctx context.Context, c *ReportCache, key string, ttl time.Duration, bypass bool, produce func(ctx context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil || bypass || ttl <= 0 {
		return produce(ctx)
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("report cache read failed, computing directly", zap.String("key", key), zap.Error(err))
		return produce(ctx)
	}
	if ok {
		var cached T
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(decodeErr))
	}

	fillCtx := context.WithoutCancel(ctx)
	fill := c.sf.DoChan(key, func() (interface{}, error) {
		value, err := produce(fillCtx)
		if err != nil {
			return value, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			c.logger.Warn("report not cacheable", zap.String("key", key), zap.Error(err))
			return value, nil
		}
		if err := c.store.Put(fillCtx, key, data, ttl); err != nil {
			c.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-fill:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
