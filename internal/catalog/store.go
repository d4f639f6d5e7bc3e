// Package catalog keeps the current provider catalog snapshot and refreshes it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("catalog snapshot not loaded yet")

// Store holds the current snapshot. Readers get the same immutable value
// until Replace swaps in a new one.
type Store struct {
	current atomic.Pointer[domain.CatalogSnapshot]
	cache   SnapshotCache
	log     *zap.Logger
}

// NewStore returns an empty store. cache may be nil.
func NewStore(cache SnapshotCache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cache: cache, log: log.Named("catalog")}
}

func (s *Store) Snapshot() (*domain.CatalogSnapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Replace makes snapshot current and persists it. The in-memory swap happens
// even when persisting fails.
func (s *Store) Replace(ctx context.Context, snapshot *domain.CatalogSnapshot) error {
	s.current.Store(snapshot)
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Reload adopts the persisted snapshot when it is newer than the current one.
// It reports whether the current snapshot changed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	snap, err := s.cache.Load(ctx)
	if errors.Is(err, ErrSnapshotMissing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for {
		cur := s.current.Load()
		if cur != nil && !snap.FetchedAt.After(cur.FetchedAt) {
			return false, nil
		}
		if s.current.CompareAndSwap(cur, snap) {
			return true, nil
		}
	}
}

// Warm loads the persisted snapshot at startup.
func (s *Store) Warm(ctx context.Context) {
	loaded, err := s.Reload(ctx)
	switch {
	case err != nil:
		s.log.Warn("failed to load persisted catalog snapshot", zap.Error(err))
	case loaded:
		snap := s.current.Load()
		s.log.Info("loaded persisted catalog snapshot",
			zap.Time("fetched_at", snap.FetchedAt),
			zap.Int("products", len(snap.Products)))
	}
}
