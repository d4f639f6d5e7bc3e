package domain

import "time"

// Price is the subset of a provider price the storefront reads.
type Price struct {
	ID         PriceID `json:"id"`
	Active     bool    `json:"active"`
	Currency   string  `json:"currency,omitempty"`
	UnitAmount *int64  `json:"unit_amount,omitempty"`
}

type Product struct {
	ID           ProductID         `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Active       bool              `json:"active"`
	Images       []string          `json:"images,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	DefaultPrice *Price            `json:"default_price,omitempty"`
}

// ShippingRate is a fixed-amount shipping option defined on the provider.
type ShippingRate struct {
	ID          ShippingRateID `json:"id"`
	DisplayName string         `json:"display_name"`
	Active      bool           `json:"active"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
}

// ShippingRateParams describes a shipping rate to create on the provider.
type ShippingRateParams struct {
	DisplayName     string
	Amount          int64
	Currency        string
	MinDeliveryDays int
	MaxDeliveryDays int
}

// CatalogSnapshot is a point-in-time, read-only copy of provider data. It is
// shared between concurrent requests and must not be mutated once built.
type CatalogSnapshot struct {
	Products              []Product         `json:"products"`
	CheckoutSessions      []CheckoutSession `json:"checkout_sessions"`
	DefaultShippingRateID ShippingRateID    `json:"default_shipping_rate_id"`
	FreeShippingRateID    ShippingRateID    `json:"free_shipping_rate_id"`
	FetchedAt             time.Time         `json:"fetched_at"`
}

func (s *CatalogSnapshot) Product(id ProductID) (*Product, bool) {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i], true
		}
	}
	return nil, false
}

// DefaultPrice returns the default price of product id, if the product is in
// the snapshot and has one. The price may be inactive.
func (s *CatalogSnapshot) DefaultPrice(id ProductID) (*Price, bool) {
	p, ok := s.Product(id)
	if !ok || p.DefaultPrice == nil {
		return nil, false
	}
	return p.DefaultPrice, true
}

func (s *CatalogSnapshot) Session(id SessionID) (*CheckoutSession, bool) {
	for i := range s.CheckoutSessions {
		if s.CheckoutSessions[i].ID == id {
			return &s.CheckoutSessions[i], true
		}
	}
	return nil, false
}

// OpenSessions counts sessions whose status is Open.
func (s *CatalogSnapshot) OpenSessions() int {
	n := 0
	for i := range s.CheckoutSessions {
		if s.CheckoutSessions[i].Status == SessionStatusOpen {
			n++
		}
	}
	return n
}
