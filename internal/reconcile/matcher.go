package reconcile

import "github.com/fjod/storefront/internal/domain"

// HasOpenSession reports whether sessionID names a session in the snapshot
// whose status is open. Unknown, expired and complete sessions all yield false.
func HasOpenSession(sessionID domain.SessionID, snapshot *domain.CatalogSnapshot) bool {
	_, ok := openSession(sessionID, snapshot)
	return ok
}

func openSession(sessionID domain.SessionID, snapshot *domain.CatalogSnapshot) (*domain.CheckoutSession, bool) {
	if sessionID == "" || snapshot == nil {
		return nil, false
	}
	session, ok := snapshot.Session(sessionID)
	if !ok || session.Status != domain.SessionStatusOpen {
		return nil, false
	}
	return session, true
}
