package domain

import "time"

type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusExpired  SessionStatus = "expired"
	SessionStatusComplete SessionStatus = "complete"
)

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusExpired || s == SessionStatusComplete
}

func (s SessionStatus) String() string {
	return string(s)
}

type LineItem struct {
	PriceID  PriceID `json:"price_id"`
	Quantity int64   `json:"quantity"`
}

// CheckoutSession is the provider's hosted payment flow. A nil LineItems
// means the provider did not return line items for the session, which is
// different from a session with an empty list.
type CheckoutSession struct {
	ID                SessionID     `json:"id"`
	Status            SessionStatus `json:"status"`
	LineItems         []LineItem    `json:"line_items"`
	URL               string        `json:"url,omitempty"`
	ClientReferenceID string        `json:"client_reference_id,omitempty"`
	AmountTotal       int64         `json:"amount_total"`
	Currency          string        `json:"currency,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
}

// CreateLineItem is one line of a session creation request.
type CreateLineItem struct {
	PriceID    PriceID
	Quantity   int64
	Adjustable bool
	AdjustMin  int64
	AdjustMax  int64
}

// CreateSessionRequest carries everything the provider needs to open a new
// hosted checkout session.
type CreateSessionRequest struct {
	Currency              string
	LineItems             []CreateLineItem
	ShippingRateID        ShippingRateID
	RequireBillingAddress bool
	CollectPhoneNumber    bool
	AllowedCountries      []string
	CancelURL             string
	SuccessURL            string
	ShippingMessage       string
	ClientReferenceID     string
	IdempotencyKey        string
}
