package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"player-auction/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache stores the latest open round view under a single key.
type RedisStateCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStateCache(client *redis.Client, key string, ttl time.Duration) *RedisStateCache {
	return &RedisStateCache{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisStateCache) SaveSnapshot(ctx context.Context, view *domain.RoundView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

// GetSnapshot returns nil without error when nothing is cached.
func (r *RedisStateCache) GetSnapshot(ctx context.Context) (*domain.RoundView, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var view domain.RoundView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *RedisStateCache) ClearSnapshot(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisStateCache) RefreshSnapshot(ctx context.Context) error {
	if r.ttl <= 0 {
		return nil
	}
	return r.client.Expire(ctx, r.key, r.ttl).Err()
}
