package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// ResultCache stores encoded reports as plain string keys with a TTL.
// Keys are the derived report keys, e.g. report:t7:nps-current:parent:last-365-days:f=.
type ResultCache struct {
	client *redis.Client

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewResultCache(client *redis.Client) *ResultCache {
	return &ResultCache{
		client: client,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *ResultCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, key, value, c.ttlWithJitter(ttl)).Err()
}

func (c *ResultCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// InvalidatePrefix walks the keyspace with SCAN and deletes matching keys batch by batch.
func (c *ResultCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *ResultCache) ttlWithJitter(ttl time.Duration) time.Duration {
	jitterMax := int64(ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return ttl - time.Duration(c.rnd.Int63n(jitterMax+1))
}
