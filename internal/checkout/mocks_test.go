package checkout

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/reconcile"
)

type mockCarts struct {
	m           sync.Mutex
	rec         *cart.Record
	err         error
	rememberErr error
	remembered  []domain.SessionID
}

func (m *mockCarts) GetCart(_ context.Context, clientID string) (*cart.Record, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil {
		return &cart.Record{ClientID: clientID, Items: domain.NewCart()}, nil
	}
	cp := *m.rec
	return &cp, nil
}

func (m *mockCarts) RememberSession(_ context.Context, _ string, sessionID domain.SessionID) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.rememberErr != nil {
		return m.rememberErr
	}
	m.remembered = append(m.remembered, sessionID)
	return nil
}

type mockCatalog struct {
	snapshot *domain.CatalogSnapshot
	err      error
}

func (m *mockCatalog) Snapshot() (*domain.CatalogSnapshot, error) {
	return m.snapshot, m.err
}

type mockReconciler struct {
	res  *reconcile.Result
	err  error
	reqs []reconcile.Request
}

func (m *mockReconciler) Reconcile(_ context.Context, _ *domain.CatalogSnapshot, req reconcile.Request) (*reconcile.Result, error) {
	m.reqs = append(m.reqs, req)
	return m.res, m.err
}

type memoryAttempts struct {
	m        sync.Mutex
	attempts []*Attempt
	err      error
}

func (m *memoryAttempts) RecordAttempt(_ context.Context, a *Attempt) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryAttempts) ListAttempts(_ context.Context, clientID string, limit int) ([]*Attempt, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*Attempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].ClientID == clientID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

func (m *memoryAttempts) all() []*Attempt {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]*Attempt(nil), m.attempts...)
}
