package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/reconcile"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, clientID string) (*reconcile.Result, error)
	Resume(ctx context.Context, clientID string) (*domain.CheckoutSession, error)
	History(ctx context.Context, clientID string, limit int) ([]*checkout.Attempt, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	currency string
	timeout  time.Duration
	log      *zap.Logger
}

func NewCheckoutHandler(svc CheckoutService, currency string, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		currency: currency,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutResponseDTO struct {
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	Reused         bool   `json:"reused"`
	Total          int64  `json:"total"`
	TotalDisplay   string `json:"total_display"`
	ShippingRateID string `json:"shipping_rate_id,omitempty"`
}

type HistoryQueryDTO struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

type AttemptDTO struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Outcome     string    `json:"outcome"`
	TotalAmount int64     `json:"total_amount"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// POST /api/v1/checkout[?redirect=true]
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	redirect, err := parseBoolQuery(r, "redirect")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_redirect", "redirect must be a boolean")
		return
	}

	res, err := h.checkout.Checkout(ctx, clientIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	if redirect && res.Session.URL != "" {
		http.Redirect(w, r, res.Session.URL, http.StatusSeeOther)
		return
	}

	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponseDTO{
		SessionID:      res.Session.ID.String(),
		URL:            res.Session.URL,
		Reused:         res.Reused,
		Total:          res.TotalAmount,
		TotalDisplay:   domain.FormatAmount(res.TotalAmount, h.currency),
		ShippingRateID: res.ShippingRateID.String(),
	})
}

// GET /api/v1/checkout returns the cart's session while it is still open.
func (h *CheckoutHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.checkout.Resume(ctx, clientIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{
		SessionID:    session.ID.String(),
		URL:          session.URL,
		Reused:       true,
		Total:        session.AmountTotal,
		TotalDisplay: domain.FormatAmount(session.AmountTotal, session.Currency),
	})
}

// GET /api/v1/checkout/history
func (h *CheckoutHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var q HistoryQueryDTO
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if !validateRequest(w, &q) {
		return
	}

	attempts, err := h.checkout.History(ctx, clientIDFromContext(r.Context()), q.Limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	out := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptDTO{
			ID:          a.ID.String(),
			SessionID:   a.SessionID.String(),
			Outcome:     a.Outcome,
			TotalAmount: a.TotalAmount,
			Error:       a.Error,
			CreatedAt:   a.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
