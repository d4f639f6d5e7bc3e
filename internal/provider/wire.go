package provider

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type wirePrice struct {
	ID         string `json:"id"`
	Active     bool   `json:"active"`
	Currency   string `json:"currency"`
	UnitAmount *int64 `json:"unit_amount"`
}

func (p *wirePrice) toDomain() *domain.Price {
	if p == nil {
		return nil
	}
	return &domain.Price{
		ID:         domain.PriceID(p.ID),
		Active:     p.Active,
		Currency:   p.Currency,
		UnitAmount: p.UnitAmount,
	}
}

type wireProduct struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Active      bool              `json:"active"`
	Images      []string          `json:"images"`
	Metadata    map[string]string `json:"metadata"`
	// DefaultPrice is a bare id unless expanded.
	DefaultPrice json.RawMessage `json:"default_price"`
}

func (p wireProduct) toDomain() domain.Product {
	out := domain.Product{
		ID:          domain.ProductID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Images:      p.Images,
		Metadata:    p.Metadata,
	}
	raw := bytes.TrimSpace(p.DefaultPrice)
	if len(raw) > 0 && raw[0] == '{' {
		var price wirePrice
		if err := json.Unmarshal(raw, &price); err == nil {
			out.DefaultPrice = price.toDomain()
		}
	}
	return out
}

type wireLineItem struct {
	ID       string     `json:"id"`
	Quantity int64      `json:"quantity"`
	Price    *wirePrice `json:"price"`
}

type wireSession struct {
	ID                string              `json:"id"`
	Status            string              `json:"status"`
	URL               string              `json:"url"`
	ClientReferenceID string              `json:"client_reference_id"`
	AmountTotal       int64               `json:"amount_total"`
	Currency          string              `json:"currency"`
	Created           int64               `json:"created"`
	ExpiresAt         int64               `json:"expires_at"`
	LineItems         *page[wireLineItem] `json:"line_items"`
}

func (s wireSession) toDomain() domain.CheckoutSession {
	out := domain.CheckoutSession{
		ID:                domain.SessionID(s.ID),
		Status:            sessionStatus(s.Status),
		URL:               s.URL,
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
		Currency:          s.Currency,
		CreatedAt:         unixTime(s.Created),
		ExpiresAt:         unixTime(s.ExpiresAt),
	}
	if s.LineItems != nil {
		out.LineItems = lineItems(s.LineItems.Data)
	}
	return out
}

func lineItems(items []wireLineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, li := range items {
		if li.Price == nil {
			continue
		}
		out = append(out, domain.LineItem{PriceID: domain.PriceID(li.Price.ID), Quantity: li.Quantity})
	}
	return out
}

// sessionStatus maps unknown statuses to expired so they are never reused.
func sessionStatus(s string) domain.SessionStatus {
	switch domain.SessionStatus(s) {
	case domain.SessionStatusOpen:
		return domain.SessionStatusOpen
	case domain.SessionStatusComplete:
		return domain.SessionStatusComplete
	default:
		return domain.SessionStatusExpired
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

type wireShippingRate struct {
	ID          string `json:"id"`
	Active      bool   `json:"active"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	FixedAmount *struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"fixed_amount"`
}

// toDomain reports false for rates without a fixed amount.
func (r wireShippingRate) toDomain() (domain.ShippingRate, bool) {
	if r.FixedAmount == nil {
		return domain.ShippingRate{}, false
	}
	return domain.ShippingRate{
		ID:          domain.ShippingRateID(r.ID),
		DisplayName: r.DisplayName,
		Active:      r.Active,
		Amount:      r.FixedAmount.Amount,
		Currency:    r.FixedAmount.Currency,
	}, true
}
