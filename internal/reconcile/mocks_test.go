package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
)

type mockCreator struct {
	m        sync.Mutex
	requests []*domain.CreateSessionRequest
	err      error
}

func (m *mockCreator) CreateCheckoutSession(_ context.Context, req *domain.CreateSessionRequest) (*domain.CheckoutSession, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, domain.LineItem{PriceID: li.PriceID, Quantity: li.Quantity})
	}
	id := domain.SessionID(fmt.Sprintf("cs_new_%d", len(m.requests)))
	return &domain.CheckoutSession{
		ID:                id,
		Status:            domain.SessionStatusOpen,
		LineItems:         items,
		URL:               "https://checkout.example.test/" + string(id),
		ClientReferenceID: req.ClientReferenceID,
	}, nil
}

func (m *mockCreator) calls() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.requests)
}

func (m *mockCreator) last() *domain.CreateSessionRequest {
	m.m.Lock()
	defer m.m.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

type mockTrigger struct {
	m        sync.Mutex
	requests []domain.SyncRequested
	err      error
}

func (m *mockTrigger) RequestSync(_ context.Context, req domain.SyncRequested) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.requests = append(m.requests, req)
	return m.err
}

func (m *mockTrigger) calls() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.requests)
}

func price(id domain.PriceID, amount int64, active bool) *domain.Price {
	return &domain.Price{ID: id, Active: active, Currency: "aud", UnitAmount: &amount}
}

func testSnapshot(sessions ...domain.CheckoutSession) *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{
		Products: []domain.Product{
			{ID: "prod_A", Name: "Eggs", Active: true, DefaultPrice: price("price_A", 5000, true)},
			{ID: "prod_B", Name: "Honey", Active: true, DefaultPrice: price("price_B", 2000, true)},
			{ID: "prod_C", Name: "Old jam", Active: true, DefaultPrice: price("price_C", 900, false)},
			{ID: "prod_D", Name: "No price", Active: true},
		},
		CheckoutSessions:      sessions,
		DefaultShippingRateID: "shr_paid",
		FreeShippingRateID:    "shr_free",
	}
}

// sessionFor builds a session holding exactly the cart's resolved prices.
func sessionFor(id domain.SessionID, status domain.SessionStatus, cart domain.Cart, snapshot *domain.CatalogSnapshot) domain.CheckoutSession {
	items := []domain.LineItem{}
	for priceID, qty := range CartPriceQuantities(cart, snapshot) {
		items = append(items, domain.LineItem{PriceID: priceID, Quantity: qty})
	}
	return domain.CheckoutSession{ID: id, Status: status, LineItems: items}
}
