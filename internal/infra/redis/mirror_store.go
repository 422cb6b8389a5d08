package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// MirrorStore keeps last-good dashboard values in Redis so they survive restarts
// and are shared across instances. A zero ttl keeps mirrors until overwritten.
type MirrorStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMirrorStore(client *redis.Client, ttl time.Duration) *MirrorStore {
	return &MirrorStore{client: client, ttl: ttl}
}

func (s *MirrorStore) Save(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, s.ttl).Err()
}

func (s *MirrorStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *MirrorStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
