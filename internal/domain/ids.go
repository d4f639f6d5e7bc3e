package domain

// Provider identifiers are kept as distinct types so a product id can never be
// passed where a price id is expected.
type (
	ProductID      string
	PriceID        string
	SessionID      string
	ShippingRateID string
)

func (id ProductID) String() string      { return string(id) }
func (id PriceID) String() string        { return string(id) }
func (id SessionID) String() string      { return string(id) }
func (id ShippingRateID) String() string { return string(id) }
