package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	products []domain.Product
	sessions []domain.CheckoutSession
	rates    []domain.ShippingRate
	created  []domain.ShippingRateParams
	since    time.Time
	err      error
	block    chan struct{}

	productCalls atomic.Int32
}

func (f *fakeSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	f.productCalls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeSource) ListCheckoutSessions(_ context.Context, since time.Time) ([]domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.sessions, nil
}

func (f *fakeSource) ListShippingRates(context.Context) ([]domain.ShippingRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rates, nil
}

func (f *fakeSource) CreateShippingRate(_ context.Context, p domain.ShippingRateParams) (domain.ShippingRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	rate := domain.ShippingRate{
		ID:          domain.ShippingRateID(fmt.Sprintf("shr_created_%d", len(f.created))),
		DisplayName: p.DisplayName,
		Active:      true,
		Amount:      p.Amount,
		Currency:    p.Currency,
	}
	f.rates = append(f.rates, rate)
	return rate, nil
}

func (f *fakeSource) setSessions(s []domain.CheckoutSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = s
}

type publishedEvent struct {
	topic   string
	key     string
	payload any
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *capturingPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, key, payload})
	return nil
}

func (p *capturingPublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type memoryCache struct {
	mu       sync.Mutex
	snapshot *domain.CatalogSnapshot
	saveErr  error
}

func (m *memoryCache) Load(context.Context) (*domain.CatalogSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, ErrSnapshotMissing
	}
	return m.snapshot, nil
}

func (m *memoryCache) Save(_ context.Context, s *domain.CatalogSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = s
	return nil
}

type readiness struct {
	ready atomic.Bool
}

func (r *readiness) SetReady(ready bool) {
	r.ready.Store(ready)
}

var errProviderDown = errors.New("provider down")

func amount(v int64) *int64 { return &v }

func testSource() *fakeSource {
	return &fakeSource{
		products: []domain.Product{
			{ID: "prod_A", Name: "Eggs", Active: true, DefaultPrice: &domain.Price{ID: "price_A", Active: true, UnitAmount: amount(5000)}},
		},
		rates: []domain.ShippingRate{
			{ID: "shr_usd", Active: true, Amount: 500, Currency: "usd"},
			{ID: "shr_paid", Active: true, Amount: 1000, Currency: "aud"},
			{ID: "shr_free_old", Active: false, Amount: 0, Currency: "aud"},
			{ID: "shr_free", Active: true, Amount: 0, Currency: "aud"},
		},
	}
}
