// Package checkout turns a client's cart into a checkout session and keeps a
// log of every attempt.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

var ErrNoOpenSession = errors.New("no open checkout session for this cart")

type CartService interface {
	GetCart(ctx context.Context, clientID string) (*cart.Record, error)
	RememberSession(ctx context.Context, clientID string, sessionID domain.SessionID) error
}

type SnapshotSource interface {
	Snapshot() (*domain.CatalogSnapshot, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, snapshot *domain.CatalogSnapshot, req reconcile.Request) (*reconcile.Result, error)
}

type Service struct {
	carts      CartService
	catalog    SnapshotSource
	reconciler Reconciler
	attempts   AttemptRepository
	currency   string
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewService wires the checkout flow. attempts and m may be nil.
func NewService(carts CartService, catalog SnapshotSource, rec Reconciler, attempts AttemptRepository,
	currency string, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		carts:      carts,
		catalog:    catalog,
		reconciler: rec,
		attempts:   attempts,
		currency:   currency,
		metrics:    m,
		log:        log.Named("checkout"),
	}
}

// Checkout reconciles the client's cart against the session it remembers and
// returns the session the client should be sent to.
func (s *Service) Checkout(ctx context.Context, clientID string) (*reconcile.Result, error) {
	log := logger.For(ctx, s.log).With(zap.String("client_id", clientID))

	rec, err := s.carts.GetCart(ctx, clientID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.catalog.Snapshot()
	if err != nil {
		return nil, err
	}

	res, err := s.reconciler.Reconcile(ctx, snapshot, reconcile.Request{
		Cart:                rec.Items,
		RememberedSessionID: rec.CheckoutSessionID,
		ClientReferenceID:   clientID,
	})
	outcome := outcomeOf(res, err)
	s.record(ctx, clientID, outcome, res, err)
	if err != nil {
		s.metrics.RecordCheckout(outcome, 0)
		return nil, err
	}
	s.metrics.RecordCheckout(outcome, res.TotalAmount)

	if !res.Reused {
		if err := s.carts.RememberSession(ctx, clientID, res.Session.ID); err != nil {
			// The session exists; the next checkout will simply open another.
			log.Error("failed to remember checkout session",
				zap.String("session_id", res.Session.ID.String()),
				zap.Error(err))
		}
	}
	return res, nil
}

// Resume returns the session the cart remembers while it is still open.
func (s *Service) Resume(ctx context.Context, clientID string) (*domain.CheckoutSession, error) {
	rec, err := s.carts.GetCart(ctx, clientID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.catalog.Snapshot()
	if err != nil {
		return nil, err
	}
	if !reconcile.HasOpenSession(rec.CheckoutSessionID, snapshot) {
		return nil, ErrNoOpenSession
	}
	session, _ := snapshot.Session(rec.CheckoutSessionID)
	return session, nil
}

// History lists the client's recent checkout attempts.
func (s *Service) History(ctx context.Context, clientID string, limit int) ([]*Attempt, error) {
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.ListAttempts(ctx, clientID, limit)
}

func (s *Service) record(ctx context.Context, clientID, outcome string, res *reconcile.Result, cause error) {
	if s.attempts == nil {
		return
	}
	a := &Attempt{
		ClientID:  clientID,
		Outcome:   outcome,
		Currency:  s.currency,
		CreatedAt: time.Now(),
	}
	if res != nil {
		a.SessionID = res.Session.ID
		a.TotalAmount = res.TotalAmount
		a.ShippingRateID = res.ShippingRateID
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.attempts.RecordAttempt(ctx, a); err != nil {
		logger.For(ctx, s.log).Warn("failed to record checkout attempt", zap.Error(err))
	}
}

func outcomeOf(res *reconcile.Result, err error) string {
	var (
		creationErr  *reconcile.CheckoutCreationError
		invariantErr *reconcile.InvariantViolationError
	)
	switch {
	case err == nil && res.Reused:
		return metrics.OutcomeReused
	case err == nil:
		return metrics.OutcomeCreated
	case errors.Is(err, reconcile.ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.As(err, &creationErr):
		return metrics.OutcomeCreationFailed
	case errors.As(err, &invariantErr):
		return metrics.OutcomeInvariantBroken
	default:
		return metrics.OutcomeError
	}
}
