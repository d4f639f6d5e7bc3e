package reconcile

import (
	"maps"

	"github.com/fjod/storefront/internal/domain"
)

// PriceQuantities maps a price to a quantity. Sessions store prices rather
// than products, so prices are the only key both sides share.
type PriceQuantities map[domain.PriceID]int64

// CartPriceQuantities resolves every cart product to its default price.
// Products without a default price are left out. Two products sharing a
// price overwrite each other.
func CartPriceQuantities(cart domain.Cart, snapshot *domain.CatalogSnapshot) PriceQuantities {
	m := make(PriceQuantities, len(cart))
	for productID, qty := range cart {
		price, ok := snapshot.DefaultPrice(productID)
		if !ok {
			continue
		}
		m[price.ID] = int64(qty)
	}
	return m
}

func SessionPriceQuantities(session *domain.CheckoutSession) PriceQuantities {
	m := make(PriceQuantities, len(session.LineItems))
	for _, item := range session.LineItems {
		m[item.PriceID] = item.Quantity
	}
	return m
}

// CartMatchesSession reports whether the session holds exactly the cart's
// prices and quantities. A session without line items is an invariant
// violation, not a mismatch.
func CartMatchesSession(cart domain.Cart, session *domain.CheckoutSession, snapshot *domain.CatalogSnapshot) (bool, error) {
	if session.LineItems == nil {
		return false, &InvariantViolationError{SessionID: session.ID, Detail: "open session has no line items"}
	}
	return maps.Equal(CartPriceQuantities(cart, snapshot), SessionPriceQuantities(session)), nil
}
