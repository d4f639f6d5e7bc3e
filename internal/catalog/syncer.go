package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is the provider API the syncer reads from.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListCheckoutSessions(ctx context.Context, since time.Time) ([]domain.CheckoutSession, error)
	ListShippingRates(ctx context.Context) ([]domain.ShippingRate, error)
	CreateShippingRate(ctx context.Context, p domain.ShippingRateParams) (domain.ShippingRate, error)
}

type ShippingDefaults struct {
	DisplayName     string `mapstructure:"display_name"`
	Amount          int64  `mapstructure:"amount"`
	MinDeliveryDays int    `mapstructure:"min_delivery_days"`
	MaxDeliveryDays int    `mapstructure:"max_delivery_days"`
}

type SyncConfig struct {
	Currency      string           `mapstructure:"currency"`
	SessionWindow time.Duration    `mapstructure:"session_window"`
	Interval      time.Duration    `mapstructure:"interval"`
	Timeout       time.Duration    `mapstructure:"timeout"`
	PaidShipping  ShippingDefaults `mapstructure:"paid_shipping"`
	FreeShipping  ShippingDefaults `mapstructure:"free_shipping"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Currency:      "aud",
		SessionWindow: 24 * time.Hour,
		Interval:      5 * time.Minute,
		Timeout:       2 * time.Minute,
		PaidShipping: ShippingDefaults{
			DisplayName:     "Standard shipping",
			Amount:          1000,
			MinDeliveryDays: 4,
			MaxDeliveryDays: 7,
		},
		FreeShipping: ShippingDefaults{
			DisplayName:     "Free shipping",
			Amount:          0,
			MinDeliveryDays: 4,
			MaxDeliveryDays: 7,
		},
	}
}

// Syncer rebuilds the snapshot from the provider.
type Syncer struct {
	src     Source
	store   *Store
	pub     events.Publisher
	metrics *metrics.Metrics
	cfg     SyncConfig
	group   singleflight.Group
	log     *zap.Logger
	now     func() time.Time
}

// NewSyncer wires a syncer. pub and m may be nil.
func NewSyncer(src Source, store *Store, pub events.Publisher, m *metrics.Metrics, cfg SyncConfig, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		src:     src,
		store:   store,
		pub:     pub,
		metrics: m,
		cfg:     cfg,
		log:     log.Named("catalog"),
		now:     time.Now,
	}
}

// Sync fetches a fresh snapshot and makes it current. Concurrent calls share
// one fetch, bounded by the configured timeout rather than by any caller's
// ctx; a caller whose ctx ends stops waiting but the fetch carries on.
func (s *Syncer) Sync(ctx context.Context) (*domain.CatalogSnapshot, error) {
	ch := s.group.DoChan("sync", func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		start := time.Now()
		snap, err := s.sync(sctx)
		s.metrics.RecordSync(time.Since(start), err)
		return snap, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CatalogSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Syncer) timeout() time.Duration {
	if s.cfg.Timeout <= 0 {
		return 2 * time.Minute
	}
	return s.cfg.Timeout
}

func (s *Syncer) sync(ctx context.Context) (*domain.CatalogSnapshot, error) {
	log := logger.For(ctx, s.log)
	now := s.now()

	products, err := s.src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync products: %w", err)
	}
	sessions, err := s.src.ListCheckoutSessions(ctx, now.Add(-s.cfg.SessionWindow))
	if err != nil {
		return nil, fmt.Errorf("sync checkout sessions: %w", err)
	}
	rates, err := s.src.ListShippingRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync shipping rates: %w", err)
	}

	paid, err := s.ensureRate(ctx, rates, func(r domain.ShippingRate) bool { return r.Amount > 0 }, s.cfg.PaidShipping)
	if err != nil {
		return nil, err
	}
	free, err := s.ensureRate(ctx, rates, func(r domain.ShippingRate) bool { return r.Amount == 0 }, s.cfg.FreeShipping)
	if err != nil {
		return nil, err
	}

	snap := &domain.CatalogSnapshot{
		Products:              products,
		CheckoutSessions:      sessions,
		DefaultShippingRateID: paid,
		FreeShippingRateID:    free,
		FetchedAt:             now,
	}

	prev, _ := s.store.Snapshot()
	if err := s.store.Replace(ctx, snap); err != nil {
		log.Warn("snapshot stored in memory only", zap.Error(err))
	}
	s.metrics.SetSnapshot(snap)
	log.Info("catalog synced",
		zap.Int("products", len(products)),
		zap.Int("sessions", len(sessions)),
		zap.Int("open_sessions", snap.OpenSessions()))

	s.publish(ctx, domain.TopicSnapshotUpdated, "snapshot", domain.SnapshotUpdated{
		FetchedAt: now,
		Products:  len(products),
		Sessions:  len(sessions),
	})
	for _, done := range newlyCompleted(prev, snap) {
		s.publish(ctx, domain.TopicCheckoutCompleted, done.ID.String(), domain.CheckoutCompleted{
			SessionID:   done.ID,
			ClientID:    done.ClientReferenceID,
			AmountTotal: done.AmountTotal,
			Currency:    done.Currency,
			At:          now,
		})
	}
	return snap, nil
}

// ensureRate returns the first active rate in the shop currency accepted by
// match, creating one from defaults when none exists.
func (s *Syncer) ensureRate(ctx context.Context, rates []domain.ShippingRate, match func(domain.ShippingRate) bool, def ShippingDefaults) (domain.ShippingRateID, error) {
	for _, r := range rates {
		if r.Active && strings.EqualFold(r.Currency, s.cfg.Currency) && match(r) {
			return r.ID, nil
		}
	}
	rate, err := s.src.CreateShippingRate(ctx, domain.ShippingRateParams{
		DisplayName:     def.DisplayName,
		Amount:          def.Amount,
		Currency:        s.cfg.Currency,
		MinDeliveryDays: def.MinDeliveryDays,
		MaxDeliveryDays: def.MaxDeliveryDays,
	})
	if err != nil {
		return "", fmt.Errorf("create shipping rate %q: %w", def.DisplayName, err)
	}
	logger.For(ctx, s.log).Info("created shipping rate",
		zap.String("rate_id", rate.ID.String()),
		zap.String("amount", domain.FormatAmount(rate.Amount, rate.Currency)))
	return rate.ID, nil
}

func (s *Syncer) publish(ctx context.Context, topic, key string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, topic, key, payload); err != nil {
		logger.For(ctx, s.log).Warn("failed to publish catalog event", zap.String("topic", topic), zap.Error(err))
	}
}

// newlyCompleted lists sessions that are complete in next, carry a client
// reference, and were not already complete in prev.
func newlyCompleted(prev, next *domain.CatalogSnapshot) []domain.CheckoutSession {
	var out []domain.CheckoutSession
	for _, sess := range next.CheckoutSessions {
		if sess.Status != domain.SessionStatusComplete || sess.ClientReferenceID == "" {
			continue
		}
		if prev != nil {
			if old, ok := prev.Session(sess.ID); ok && old.Status == domain.SessionStatusComplete {
				continue
			}
		}
		out = append(out, sess)
	}
	return out
}
