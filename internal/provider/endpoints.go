package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// ListProducts returns every active product with its default price expanded.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Add("expand[]", "data.default_price")

	raw, err := listAll(ctx, c, "/v1/products", params, func(p wireProduct) string { return p.ID })
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]domain.Product, 0, len(raw))
	for _, p := range raw {
		products = append(products, p.toDomain())
	}
	return products, nil
}

// ListCheckoutSessions returns sessions created at or after since, with line
// items expanded. Sessions whose embedded line item list was truncated get
// the remainder fetched separately.
func (c *Client) ListCheckoutSessions(ctx context.Context, since time.Time) ([]domain.CheckoutSession, error) {
	params := url.Values{}
	params.Add("expand[]", "data.line_items")
	if !since.IsZero() {
		params.Set("created[gte]", strconv.FormatInt(since.Unix(), 10))
	}

	raw, err := listAll(ctx, c, "/v1/checkout/sessions", params, func(s wireSession) string { return s.ID })
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	sessions := make([]domain.CheckoutSession, 0, len(raw))
	for _, s := range raw {
		session := s.toDomain()
		if s.LineItems != nil && s.LineItems.HasMore {
			items, err := c.ListLineItems(ctx, session.ID)
			if err != nil {
				return nil, err
			}
			session.LineItems = items
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (c *Client) ListLineItems(ctx context.Context, id domain.SessionID) ([]domain.LineItem, error) {
	path := "/v1/checkout/sessions/" + url.PathEscape(id.String()) + "/line_items"
	raw, err := listAll(ctx, c, path, url.Values{}, func(li wireLineItem) string { return li.ID })
	if err != nil {
		return nil, fmt.Errorf("list line items of %s: %w", id, err)
	}
	return lineItems(raw), nil
}

// ListShippingRates returns active fixed-amount shipping rates.
func (c *Client) ListShippingRates(ctx context.Context) ([]domain.ShippingRate, error) {
	params := url.Values{}
	params.Set("active", "true")

	raw, err := listAll(ctx, c, "/v1/shipping_rates", params, func(r wireShippingRate) string { return r.ID })
	if err != nil {
		return nil, fmt.Errorf("list shipping rates: %w", err)
	}
	rates := make([]domain.ShippingRate, 0, len(raw))
	for _, r := range raw {
		if rate, ok := r.toDomain(); ok {
			rates = append(rates, rate)
		}
	}
	return rates, nil
}

func (c *Client) CreateShippingRate(ctx context.Context, p domain.ShippingRateParams) (domain.ShippingRate, error) {
	form := url.Values{}
	form.Set("display_name", p.DisplayName)
	form.Set("type", "fixed_amount")
	form.Set("fixed_amount[amount]", strconv.FormatInt(p.Amount, 10))
	form.Set("fixed_amount[currency]", strings.ToLower(p.Currency))
	if p.MinDeliveryDays > 0 {
		form.Set("delivery_estimate[minimum][unit]", "day")
		form.Set("delivery_estimate[minimum][value]", strconv.Itoa(p.MinDeliveryDays))
	}
	if p.MaxDeliveryDays > 0 {
		form.Set("delivery_estimate[maximum][unit]", "day")
		form.Set("delivery_estimate[maximum][value]", strconv.Itoa(p.MaxDeliveryDays))
	}

	var raw wireShippingRate
	if err := c.call(ctx, http.MethodPost, "/v1/shipping_rates", form, uuid.NewString(), &raw); err != nil {
		return domain.ShippingRate{}, fmt.Errorf("create shipping rate: %w", err)
	}
	rate, ok := raw.toDomain()
	if !ok {
		return domain.ShippingRate{}, fmt.Errorf("create shipping rate: response for %s has no fixed amount", raw.ID)
	}
	return rate, nil
}

// CreateCheckoutSession opens a hosted payment-mode session. A request
// without an idempotency key gets a fresh one so retries of this call never
// open a second session.
func (c *Client) CreateCheckoutSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.CheckoutSession, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	var raw wireSession
	if err := c.call(ctx, http.MethodPost, "/v1/checkout/sessions", sessionForm(req), key, &raw); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	session := raw.toDomain()
	return &session, nil
}

func sessionForm(req *domain.CreateSessionRequest) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("ui_mode", "hosted")
	form.Set("customer_creation", "if_required")
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Add("expand[]", "line_items")
	if req.ClientReferenceID != "" {
		form.Set("client_reference_id", req.ClientReferenceID)
	}

	for i, li := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price]", li.PriceID.String())
		form.Set(prefix+"[quantity]", strconv.FormatInt(li.Quantity, 10))
		if li.Adjustable {
			form.Set(prefix+"[adjustable_quantity][enabled]", "true")
			form.Set(prefix+"[adjustable_quantity][minimum]", strconv.FormatInt(li.AdjustMin, 10))
			form.Set(prefix+"[adjustable_quantity][maximum]", strconv.FormatInt(li.AdjustMax, 10))
		}
	}

	if req.ShippingRateID != "" {
		form.Set("shipping_options[0][shipping_rate]", req.ShippingRateID.String())
	}
	for i, country := range req.AllowedCountries {
		form.Set(fmt.Sprintf("shipping_address_collection[allowed_countries][%d]", i), country)
	}
	if req.RequireBillingAddress {
		form.Set("billing_address_collection", "required")
	} else {
		form.Set("billing_address_collection", "auto")
	}
	if req.CollectPhoneNumber {
		form.Set("phone_number_collection[enabled]", "true")
	}
	form.Set("consent_collection[payment_method_reuse_agreement][position]", "hidden")
	if req.ShippingMessage != "" {
		form.Set("custom_text[shipping_address][message]", req.ShippingMessage)
		form.Set("custom_text[after_submit][message]", req.ShippingMessage)
	}
	return form
}
