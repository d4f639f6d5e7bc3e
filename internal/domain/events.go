package domain

import "time"

// Event topics.
const (
	TopicSyncRequested     = "catalog.sync.requested"
	TopicSnapshotUpdated   = "catalog.snapshot.updated"
	TopicCheckoutCompleted = "checkout.session.completed"
)

// SyncRequested asks the catalog worker to refresh the snapshot.
type SyncRequested struct {
	Reason    string    `json:"reason"`
	SessionID SessionID `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// SnapshotUpdated is emitted after a new snapshot has been stored.
type SnapshotUpdated struct {
	FetchedAt time.Time `json:"fetched_at"`
	Products  int       `json:"products"`
	Sessions  int       `json:"sessions"`
}

// CheckoutCompleted is emitted when a session the storefront created becomes
// complete on the provider.
type CheckoutCompleted struct {
	SessionID   SessionID `json:"session_id"`
	ClientID    string    `json:"client_id"`
	AmountTotal int64     `json:"amount_total"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}
