// Package reconcile decides whether a client's remembered checkout session
// still reflects the cart, and opens a new session when it does not.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCreator opens checkout sessions on the provider.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.CheckoutSession, error)
}

// SyncTrigger asks for a catalog refresh. Implementations must not block on
// the refresh itself.
type SyncTrigger interface {
	RequestSync(ctx context.Context, req domain.SyncRequested) error
}

var idempotencyNamespace = uuid.MustParse("6f1c1f6e-3f0b-4a8e-9d55-2b7f3c1f0a42")

type Request struct {
	Cart                domain.Cart
	RememberedSessionID domain.SessionID
	// ClientReferenceID is attached to new sessions so completions can be
	// traced back to the client's cart.
	ClientReferenceID string
}

type Result struct {
	Session        *domain.CheckoutSession
	Reused         bool
	TotalAmount    int64
	ShippingRateID domain.ShippingRateID
}

type Reconciler struct {
	creator SessionCreator
	trigger SyncTrigger
	policy  Policy
	log     *zap.Logger
	now     func() time.Time
}

func NewReconciler(creator SessionCreator, trigger SyncTrigger, policy Policy, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		creator: creator,
		trigger: trigger,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

func (r *Reconciler) Policy() Policy {
	return r.policy
}

// Reconcile returns the remembered session when it is open and holds exactly
// the cart's contents; otherwise it creates a new session. Every step reads
// the same snapshot.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot *domain.CatalogSnapshot, req Request) (*Result, error) {
	if snapshot == nil {
		return nil, errors.New("reconcile: nil catalog snapshot")
	}
	cart := req.Cart.Clone()
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	log := logger.For(ctx, r.log).With(zap.String("client_ref", req.ClientReferenceID))

	total := cart.TotalPrice(snapshot)

	if session, ok := openSession(req.RememberedSessionID, snapshot); ok {
		matches, err := CartMatchesSession(cart, session, snapshot)
		if err != nil {
			log.Error("remembered session is open but unusable",
				zap.String("session_id", session.ID.String()), zap.Error(err))
			return nil, err
		}
		if matches {
			log.Info("reusing open checkout session", zap.String("session_id", session.ID.String()))
			return &Result{Session: session, Reused: true, TotalAmount: total}, nil
		}
		log.Info("cart changed since session was opened, abandoning it",
			zap.String("session_id", session.ID.String()))
	}

	rateID := r.policy.ShippingRate(total, snapshot)

	lineItems, err := r.lineItems(cart, snapshot)
	if err != nil {
		return nil, err
	}

	createReq := &domain.CreateSessionRequest{
		Currency:              r.policy.Currency,
		LineItems:             lineItems,
		ShippingRateID:        rateID,
		RequireBillingAddress: r.policy.RequireBillingAddress,
		CollectPhoneNumber:    r.policy.CollectPhoneNumber,
		AllowedCountries:      r.policy.AllowedCountries,
		CancelURL:             r.policy.CancelURL,
		SuccessURL:            r.policy.SuccessURL,
		ShippingMessage:       r.policy.ShippingMessage,
		ClientReferenceID:     req.ClientReferenceID,
	}
	if r.policy.IdempotentCreate {
		createReq.IdempotencyKey = idempotencyKey(req, cart)
	}

	session, err := r.creator.CreateCheckoutSession(ctx, createReq)
	if err != nil {
		if errors.Is(err, domain.ErrProviderRejected) {
			return nil, &CheckoutCreationError{Reason: "provider rejected session", Err: err}
		}
		return nil, err
	}

	log.Info("created checkout session",
		zap.String("session_id", session.ID.String()),
		zap.String("total", domain.FormatAmount(total, r.policy.Currency)),
		zap.String("shipping_rate", rateID.String()),
		zap.Time("expires_at", session.ExpiresAt))

	if r.trigger != nil {
		syncReq := domain.SyncRequested{Reason: "checkout session created", SessionID: session.ID, At: r.now()}
		if err := r.trigger.RequestSync(ctx, syncReq); err != nil {
			log.Warn("failed to request catalog sync", zap.Error(err))
		}
	}

	return &Result{Session: session, TotalAmount: total, ShippingRateID: rateID}, nil
}

// lineItems resolves every cart product to an active price. Unlike
// TotalPrice, an unresolvable product is an error here.
func (r *Reconciler) lineItems(cart domain.Cart, snapshot *domain.CatalogSnapshot) ([]domain.CreateLineItem, error) {
	items := make([]domain.CreateLineItem, 0, len(cart))
	for _, productID := range sortedProducts(cart) {
		if _, ok := snapshot.Product(productID); !ok {
			return nil, &CheckoutCreationError{ProductID: productID, Reason: "product not in catalog"}
		}
		price, ok := snapshot.DefaultPrice(productID)
		if !ok || !price.Active {
			return nil, &CheckoutCreationError{ProductID: productID, Reason: "product has no active price"}
		}
		items = append(items, domain.CreateLineItem{
			PriceID:    price.ID,
			Quantity:   int64(cart[productID]),
			Adjustable: true,
			AdjustMin:  r.policy.AdjustableMin,
			AdjustMax:  r.policy.AdjustableMax,
		})
	}
	return items, nil
}

func sortedProducts(cart domain.Cart) []domain.ProductID {
	ids := make([]domain.ProductID, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// idempotencyKey is stable for the same client, remembered session and cart
// contents, so duplicate submissions collapse into one provider session.
func idempotencyKey(req Request, cart domain.Cart) string {
	var b strings.Builder
	b.WriteString(req.ClientReferenceID)
	b.WriteByte('|')
	b.WriteString(req.RememberedSessionID.String())
	for _, id := range sortedProducts(cart) {
		fmt.Fprintf(&b, "|%s=%d", id, cart[id])
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(b.String())).String()
}
