package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "catalog:snapshot"

var ErrSnapshotMissing = errors.New("no persisted catalog snapshot")

// SnapshotCache persists the latest snapshot so that a restarted or separate
// process can serve requests before its own first sync.
type SnapshotCache interface {
	Load(ctx context.Context) (*domain.CatalogSnapshot, error)
	Save(ctx context.Context, snapshot *domain.CatalogSnapshot) error
}

type RedisSnapshotCache struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, key: snapshotKey}
}

func (r *RedisSnapshotCache) Load(ctx context.Context) (*domain.CatalogSnapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snapshot domain.CatalogSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	return &snapshot, nil
}

// Save stores the snapshot without expiry; it is only ever replaced.
func (r *RedisSnapshotCache) Save(ctx context.Context, snapshot *domain.CatalogSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
