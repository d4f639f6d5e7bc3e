package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, clientID string) (*cart.Record, error)
	AddItem(ctx context.Context, clientID string, productID domain.ProductID) (*cart.Record, error)
	RemoveItem(ctx context.Context, clientID string, productID domain.ProductID) (*cart.Record, error)
	DeleteItem(ctx context.Context, clientID string, productID domain.ProductID) (*cart.Record, error)
	ClearCart(ctx context.Context, clientID string) error
}

type CartHandler struct {
	carts   CartService
	catalog Catalog
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartService, c Catalog, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: c,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=255,printascii"`
}

type ProductPathDTO struct {
	ProductID string `json:"product_id" validate:"required,max=255,printascii"`
}

type CartItemDTO struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name,omitempty"`
	Quantity   uint8  `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	LineTotal  int64  `json:"line_total"`
}

type CartDTO struct {
	Items             []CartItemDTO `json:"items"`
	TotalQuantity     uint64        `json:"total_quantity"`
	Total             int64         `json:"total"`
	TotalDisplay      string        `json:"total_display,omitempty"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.carts.GetCart(ctx, clientIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartDTO(rec))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	// Only sellable products may enter the cart.
	snapshot, err := h.catalog.Snapshot()
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	productID := domain.ProductID(req.ProductID)
	p, ok := snapshot.Product(productID)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if _, ok := productDTO(snapshot, p); !ok {
		respondError(w, http.StatusUnprocessableEntity, "product_unavailable", "product is not for sale")
		return
	}

	rec, err := h.carts.AddItem(ctx, clientIDFromContext(r.Context()), productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.cartDTO(rec))
}

// DELETE /api/v1/cart/items/{product_id} removes one unit.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.RemoveItem)
}

// DELETE /api/v1/cart/products/{product_id} removes the product entirely.
func (h *CartHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.DeleteItem)
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request,
	op func(context.Context, string, domain.ProductID) (*cart.Record, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	path := ProductPathDTO{ProductID: chi.URLParam(r, "product_id")}
	if !validateRequest(w, &path) {
		return
	}

	rec, err := op(ctx, clientIDFromContext(r.Context()), domain.ProductID(path.ProductID))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartDTO(rec))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, clientIDFromContext(r.Context())); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cartDTO prices the cart against the current snapshot. Without a snapshot
// the items are listed unpriced.
func (h *CartHandler) cartDTO(rec *cart.Record) CartDTO {
	snapshot, err := h.catalog.Snapshot()
	if err != nil && !errors.Is(err, catalog.ErrNotReady) {
		h.log.Warn("catalog snapshot unavailable", zap.Error(err))
	}

	dto := CartDTO{
		Items:             make([]CartItemDTO, 0, len(rec.Items)),
		TotalQuantity:     rec.Items.TotalQuantity(),
		CheckoutSessionID: rec.CheckoutSessionID.String(),
	}
	var currency string
	for id, qty := range rec.Items {
		item := CartItemDTO{ProductID: id.String(), Quantity: qty}
		if snapshot != nil {
			if p, ok := snapshot.Product(id); ok {
				item.Name = p.Name
			}
			if amount, cur, ok := priceOf(snapshot, id); ok {
				item.UnitAmount = amount
				item.LineTotal = amount * int64(qty)
				currency = cur
			}
		}
		dto.Items = append(dto.Items, item)
	}
	slices.SortFunc(dto.Items, func(a, b CartItemDTO) int { return strings.Compare(a.ProductID, b.ProductID) })

	if snapshot != nil {
		dto.Total = rec.Items.TotalPrice(snapshot)
		dto.TotalDisplay = domain.FormatAmount(dto.Total, currency)
	}
	return dto
}
