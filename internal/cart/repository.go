// Package cart stores each client's cart and the checkout session it last
// opened.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrInvalidProductID = errors.New("invalid product id")
)

// Record is the persisted cart of one client.
type Record struct {
	ID                string           `bson:"_id,omitempty" json:"-"`
	ClientID          string           `bson:"client_id" json:"client_id"`
	Items             domain.Cart      `bson:"items" json:"items"`
	CheckoutSessionID domain.SessionID `bson:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `bson:"updated_at" json:"updated_at"`
}

func emptyRecord(clientID string) *Record {
	now := time.Now()
	return &Record{
		ClientID:  clientID,
		Items:     domain.NewCart(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Repository is implemented by the MongoDB store.
type Repository interface {
	GetCart(ctx context.Context, clientID string) (*Record, error)
	// AddItem increments productID unless it already holds limit units,
	// creating the cart when needed. Each change is a single atomic update.
	AddItem(ctx context.Context, clientID string, productID domain.ProductID, limit uint8) (*Record, error)
	// RemoveItem decrements productID, dropping the entry at zero.
	RemoveItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error)
	DeleteItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error)
	SetCheckoutSession(ctx context.Context, clientID string, sessionID domain.SessionID) error
	DeleteCart(ctx context.Context, clientID string) error
	// DeleteIfSession removes the cart only when it still remembers sessionID.
	DeleteIfSession(ctx context.Context, clientID string, sessionID domain.SessionID) (bool, error)
}
