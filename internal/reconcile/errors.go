package reconcile

import (
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// CheckoutCreationError reports that a new session could not be created,
// either because a cart product has no active price or because the provider
// rejected the request.
type CheckoutCreationError struct {
	ProductID domain.ProductID
	Reason    string
	Err       error
}

func (e *CheckoutCreationError) Error() string {
	msg := "checkout creation failed: " + e.Reason
	if e.ProductID != "" {
		msg += fmt.Sprintf(" (product %s)", e.ProductID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CheckoutCreationError) Unwrap() error {
	return e.Err
}

// InvariantViolationError means provider data broke an assumption that should
// be structurally impossible, such as an open session without line items.
type InvariantViolationError struct {
	SessionID domain.SessionID
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on session %s: %s", e.SessionID, e.Detail)
}
