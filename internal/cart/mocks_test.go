package cart

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/storefront/internal/domain"
)

type mockRepository struct {
	m       sync.RWMutex
	rec     *Record
	err     error
	getHits atomic.Int32
}

func (m *mockRepository) GetCart(_ context.Context, clientID string) (*Record, error) {
	m.getHits.Add(1)
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID {
		return nil, ErrCartNotFound
	}
	cp := *m.rec
	cp.Items = m.rec.Items.Clone()
	return &cp, nil
}

func (m *mockRepository) AddItem(_ context.Context, clientID string, productID domain.ProductID, limit uint8) (*Record, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID {
		m.rec = emptyRecord(clientID)
	}
	m.rec.Items.Add(productID, limit)
	return m.copyLocked(), nil
}

func (m *mockRepository) RemoveItem(_ context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	return m.update(clientID, func(c domain.Cart) { c.Remove(productID) })
}

func (m *mockRepository) DeleteItem(_ context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	return m.update(clientID, func(c domain.Cart) { c.Delete(productID) })
}

func (m *mockRepository) update(clientID string, apply func(domain.Cart)) (*Record, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID {
		return nil, ErrCartNotFound
	}
	apply(m.rec.Items)
	return m.copyLocked(), nil
}

func (m *mockRepository) copyLocked() *Record {
	cp := *m.rec
	cp.Items = m.rec.Items.Clone()
	return &cp
}

func (m *mockRepository) SetCheckoutSession(_ context.Context, clientID string, sessionID domain.SessionID) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID {
		return ErrCartNotFound
	}
	m.rec.CheckoutSessionID = sessionID
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, clientID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID {
		return ErrCartNotFound
	}
	m.rec = nil
	return nil
}

func (m *mockRepository) DeleteIfSession(_ context.Context, clientID string, sessionID domain.SessionID) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.rec == nil || m.rec.ClientID != clientID || m.rec.CheckoutSessionID != sessionID {
		return false, nil
	}
	m.rec = nil
	return true, nil
}

func (m *mockRepository) current() *Record {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.rec
}

type mockCache struct {
	m   sync.RWMutex
	rec *Record
	err error
}

func (m *mockCache) Get(context.Context, string) (*Record, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rec == nil {
		return nil, ErrCacheMiss
	}
	return m.rec, nil
}

func (m *mockCache) Set(_ context.Context, _ string, rec *Record) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.rec = rec
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.rec = nil
	return m.err
}

func (m *mockCache) getRecord() *Record {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.rec
}
