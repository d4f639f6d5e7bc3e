package checkout

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// Attempt is one row of the checkout log.
type Attempt struct {
	ID             uuid.UUID
	ClientID       string
	SessionID      domain.SessionID
	Outcome        string
	TotalAmount    int64
	Currency       string
	ShippingRateID domain.ShippingRateID
	Error          string
	CreatedAt      time.Time
}

type AttemptRepository interface {
	RecordAttempt(ctx context.Context, a *Attempt) error
	// ListAttempts returns the client's most recent attempts, newest first.
	ListAttempts(ctx context.Context, clientID string, limit int) ([]*Attempt, error)
}
