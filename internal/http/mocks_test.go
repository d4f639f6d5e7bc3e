package http

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/reconcile"
)

type mockCatalog struct {
	snapshot *domain.CatalogSnapshot
	err      error
}

func (m *mockCatalog) Snapshot() (*domain.CatalogSnapshot, error) {
	return m.snapshot, m.err
}

type mockCarts struct {
	m       sync.Mutex
	carts   map[string]*cart.Record
	err     error
	cleared []string
}

func newMockCarts() *mockCarts {
	return &mockCarts{carts: map[string]*cart.Record{}}
}

func (m *mockCarts) get(clientID string) *cart.Record {
	rec, ok := m.carts[clientID]
	if !ok {
		rec = &cart.Record{ClientID: clientID, Items: domain.NewCart()}
		m.carts[clientID] = rec
	}
	return rec
}

func (m *mockCarts) GetCart(_ context.Context, clientID string) (*cart.Record, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.get(clientID), nil
}

func (m *mockCarts) apply(clientID string, op func(*domain.Cart)) (*cart.Record, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec := m.get(clientID)
	op(&rec.Items)
	return rec, nil
}

func (m *mockCarts) AddItem(_ context.Context, clientID string, id domain.ProductID) (*cart.Record, error) {
	return m.apply(clientID, func(c *domain.Cart) { c.Add(id, domain.DefaultPerItemLimit) })
}

func (m *mockCarts) RemoveItem(_ context.Context, clientID string, id domain.ProductID) (*cart.Record, error) {
	return m.apply(clientID, func(c *domain.Cart) { c.Remove(id) })
}

func (m *mockCarts) DeleteItem(_ context.Context, clientID string, id domain.ProductID) (*cart.Record, error) {
	return m.apply(clientID, func(c *domain.Cart) { c.Delete(id) })
}

func (m *mockCarts) ClearCart(_ context.Context, clientID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.carts, clientID)
	m.cleared = append(m.cleared, clientID)
	return nil
}

type mockCheckout struct {
	res      *reconcile.Result
	err      error
	session  *domain.CheckoutSession
	attempts []*checkout.Attempt
	clients  []string
	limits   []int
}

func (m *mockCheckout) Checkout(_ context.Context, clientID string) (*reconcile.Result, error) {
	m.clients = append(m.clients, clientID)
	return m.res, m.err
}

func (m *mockCheckout) Resume(_ context.Context, clientID string) (*domain.CheckoutSession, error) {
	m.clients = append(m.clients, clientID)
	if m.err != nil {
		return nil, m.err
	}
	if m.session == nil {
		return nil, checkout.ErrNoOpenSession
	}
	return m.session, nil
}

func (m *mockCheckout) History(_ context.Context, _ string, limit int) ([]*checkout.Attempt, error) {
	m.limits = append(m.limits, limit)
	return m.attempts, m.err
}

type mockSyncer struct {
	snapshot *domain.CatalogSnapshot
	err      error
	calls    int
}

func (m *mockSyncer) Sync(context.Context) (*domain.CatalogSnapshot, error) {
	m.calls++
	return m.snapshot, m.err
}

type mockTrigger struct {
	reqs []domain.SyncRequested
	err  error
}

func (m *mockTrigger) RequestSync(_ context.Context, req domain.SyncRequested) error {
	m.reqs = append(m.reqs, req)
	return m.err
}

func amount(v int64) *int64 { return &v }

func testSnapshot() *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{
		Products: []domain.Product{
			{ID: "prod_A", Name: "Tea pot", Active: true,
				DefaultPrice: &domain.Price{ID: "price_A", Active: true, Currency: "aud", UnitAmount: amount(5000)}},
			{ID: "prod_B", Name: "Cup", Active: true,
				DefaultPrice: &domain.Price{ID: "price_B", Active: true, Currency: "aud", UnitAmount: amount(2000)}},
			{ID: "prod_C", Name: "Retired kettle", Active: true,
				DefaultPrice: &domain.Price{ID: "price_C", Active: false, Currency: "aud", UnitAmount: amount(900)}},
			{ID: "prod_D", Name: "Gift card", Active: true},
		},
		CheckoutSessions: []domain.CheckoutSession{
			{ID: "cs_open", Status: domain.SessionStatusOpen},
		},
	}
}
