package domain

import "maps"

// DefaultPerItemLimit caps the quantity of a single product in a cart.
const DefaultPerItemLimit uint8 = 20

// Cart maps a product to the quantity the client wants. A product with
// quantity zero is never stored; it is removed instead.
type Cart map[ProductID]uint8

func NewCart() Cart {
	return Cart{}
}

// Add increments the quantity of productID by one, inserting it when absent.
// It is a silent no-op once the quantity reaches limit.
func (c *Cart) Add(productID ProductID, limit uint8) {
	if *c == nil {
		*c = Cart{}
	}
	qty, ok := (*c)[productID]
	if !ok {
		(*c)[productID] = 1
		return
	}
	if qty < limit {
		(*c)[productID] = qty + 1
	}
}

// Remove decrements the quantity of productID, deleting the entry when it
// reaches zero. Absent products are ignored.
func (c Cart) Remove(productID ProductID) {
	qty, ok := c[productID]
	if !ok {
		return
	}
	if qty > 1 {
		c[productID] = qty - 1
		return
	}
	delete(c, productID)
}

// Delete drops productID regardless of its quantity.
func (c Cart) Delete(productID ProductID) {
	delete(c, productID)
}

func (c Cart) Clear() {
	clear(c)
}

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

func (c Cart) TotalQuantity() uint64 {
	var total uint64
	for _, qty := range c {
		total += uint64(qty)
	}
	return total
}

// TotalPrice sums unit amount times quantity, in minor currency units, for
// every product whose default price is known and active. Products missing
// from the snapshot or without an active priced default contribute zero.
func (c Cart) TotalPrice(snapshot *CatalogSnapshot) int64 {
	if snapshot == nil {
		return 0
	}
	var total int64
	for productID, qty := range c {
		price, ok := snapshot.DefaultPrice(productID)
		if !ok || !price.Active || price.UnitAmount == nil {
			continue
		}
		total += *price.UnitAmount * int64(qty)
	}
	return total
}

// Clone returns an independent copy of the cart.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	return maps.Clone(c)
}
