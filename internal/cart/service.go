package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	repo    Repository
	cache   Cache
	limit   uint8
	metrics *metrics.Metrics
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

// NewService returns a cart service. limit caps the quantity of any single
// product; m may be nil.
func NewService(repo Repository, cache Cache, limit uint8, m *metrics.Metrics, log *zap.Logger) *Service {
	if limit == 0 {
		limit = domain.DefaultPerItemLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		limit:   limit,
		metrics: m,
		log:     log.Named("cart"),
	}
}

// GetCart returns the client's cart, or an empty one when none is stored.
func (s *Service) GetCart(ctx context.Context, clientID string) (*Record, error) {
	log := logger.For(ctx, s.log)
	v, err, _ := s.sfg.Do(clientID, func() (any, error) {
		rec, err := s.cache.Get(ctx, clientID)
		if err == nil {
			s.metrics.RecordCartCache(true)
			return rec, nil
		}
		s.metrics.RecordCartCache(false)
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("cache get error", zap.Error(err))
		}

		rec, err = s.repo.GetCart(ctx, clientID)
		if errors.Is(err, ErrCartNotFound) {
			return emptyRecord(clientID), nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, clientID, rec); err != nil {
				log.Warn("cache set error", zap.Error(err))
			}
		}()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers may mutate the items; singleflight shares the value.
	rec := *v.(*Record)
	rec.Items = rec.Items.Clone()
	return &rec, nil
}

// AddItem adds one unit of productID, up to the per-item limit.
func (s *Service) AddItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	return s.mutate(ctx, clientID, "add", func() (*Record, error) {
		return s.repo.AddItem(ctx, clientID, productID, s.limit)
	})
}

// RemoveItem removes one unit of productID.
func (s *Service) RemoveItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	return s.mutate(ctx, clientID, "remove", func() (*Record, error) {
		return s.repo.RemoveItem(ctx, clientID, productID)
	})
}

// DeleteItem removes productID entirely.
func (s *Service) DeleteItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	return s.mutate(ctx, clientID, "delete", func() (*Record, error) {
		return s.repo.DeleteItem(ctx, clientID, productID)
	})
}

// mutate runs one atomic repository update. Removing from a missing cart
// yields an empty cart and never creates one.
func (s *Service) mutate(ctx context.Context, clientID, op string, update func() (*Record, error)) (*Record, error) {
	rec, err := update()
	if errors.Is(err, ErrCartNotFound) {
		rec, err = emptyRecord(clientID), nil
	}
	if err != nil {
		logger.For(ctx, s.log).Error("repo update cart error", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	s.invalidateCache(ctx, clientID)
	s.metrics.RecordCartOperation(op)
	return rec, nil
}

func (s *Service) ClearCart(ctx context.Context, clientID string) error {
	err := s.repo.DeleteCart(ctx, clientID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		logger.For(ctx, s.log).Error("repo delete cart error", zap.Error(err))
		return err
	}
	s.invalidateCache(ctx, clientID)
	s.metrics.RecordCartOperation("clear")
	return nil
}

// RememberSession records the checkout session opened for the current cart.
func (s *Service) RememberSession(ctx context.Context, clientID string, sessionID domain.SessionID) error {
	if err := s.repo.SetCheckoutSession(ctx, clientID, sessionID); err != nil {
		return err
	}
	s.invalidateCache(ctx, clientID)
	return nil
}

// CompleteCheckout empties the cart after its session was paid. A cart that
// has since moved on to another session is left alone.
func (s *Service) CompleteCheckout(ctx context.Context, clientID string, sessionID domain.SessionID) (bool, error) {
	deleted, err := s.repo.DeleteIfSession(ctx, clientID, sessionID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidateCache(ctx, clientID)
		s.metrics.RecordCartOperation("complete")
		logger.For(ctx, s.log).Info("cart cleared after completed checkout",
			zap.String("client_id", clientID),
			zap.String("session_id", sessionID.String()))
	}
	return deleted, nil
}

func (s *Service) invalidateCache(ctx context.Context, clientID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, clientID); err != nil {
		logger.For(ctx, s.log).Warn("cache invalidate error", zap.Error(err))
	}
}
