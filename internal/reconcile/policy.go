package reconcile

import "github.com/fjod/storefront/internal/domain"

// Policy holds the shop rules applied when building a new session.
type Policy struct {
	Currency              string   `mapstructure:"currency"`
	PerItemLimit          uint8    `mapstructure:"per_item_limit"`
	FreeShippingThreshold int64    `mapstructure:"free_shipping_threshold"`
	AdjustableMin         int64    `mapstructure:"adjustable_min"`
	AdjustableMax         int64    `mapstructure:"adjustable_max"`
	RequireBillingAddress bool     `mapstructure:"require_billing_address"`
	CollectPhoneNumber    bool     `mapstructure:"collect_phone_number"`
	AllowedCountries      []string `mapstructure:"allowed_countries"`
	ShippingMessage       string   `mapstructure:"shipping_message"`
	CancelURL             string   `mapstructure:"cancel_url"`
	SuccessURL            string   `mapstructure:"success_url"`
	IdempotentCreate      bool     `mapstructure:"idempotent_create"`
}

func DefaultPolicy() Policy {
	return Policy{
		Currency:              "aud",
		PerItemLimit:          domain.DefaultPerItemLimit,
		FreeShippingThreshold: 30000,
		AdjustableMin:         1,
		AdjustableMax:         int64(domain.DefaultPerItemLimit),
		RequireBillingAddress: true,
		CollectPhoneNumber:    true,
		AllowedCountries:      []string{"AU"},
		CancelURL:             "http://localhost:8080/shop/cart",
		SuccessURL:            "http://localhost:8080/success",
	}
}

// ShippingRate picks the paid rate below the free shipping threshold and the
// free rate at or above it.
func (p Policy) ShippingRate(total int64, snapshot *domain.CatalogSnapshot) domain.ShippingRateID {
	if total < p.FreeShippingThreshold {
		return snapshot.DefaultShippingRateID
	}
	return snapshot.FreeShippingRateID
}
