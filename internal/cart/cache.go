package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, clientID string) (*Record, error)
	Set(ctx context.Context, clientID string, rec *Record) error
	Delete(ctx context.Context, clientID string) error
}

type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:    client,
		baseTTL:   15 * time.Minute,
		maxJitter: 5 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, clientID string) (*Record, error) {
	data, err := r.client.Get(ctx, cacheKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &rec, nil
}

// Set stores rec with a jittered TTL so entries written together do not
// expire together.
func (r *RedisCache) Set(ctx context.Context, clientID string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + rand.N(r.maxJitter)
	if err := r.client.Set(ctx, cacheKey(clientID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, cacheKey(clientID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(clientID string) string {
	return fmt.Sprintf("cart:%s", clientID)
}
