package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Catalog interface {
	Snapshot() (*domain.CatalogSnapshot, error)
}

type ProductHandler struct {
	catalog Catalog
	log     *zap.Logger
}

func NewProductHandler(c Catalog, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, log: log}
}

type ProductDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Images       []string `json:"images,omitempty"`
	UnitAmount   int64    `json:"unit_amount"`
	Currency     string   `json:"currency"`
	PriceDisplay string   `json:"price_display"`
}

// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.catalog.Snapshot()
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	products := make([]ProductDTO, 0, len(snapshot.Products))
	for _, p := range snapshot.Products {
		if dto, ok := productDTO(snapshot, &p); ok {
			products = append(products, dto)
		}
	}
	slices.SortFunc(products, func(a, b ProductDTO) int { return strings.Compare(a.Name, b.Name) })
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.catalog.Snapshot()
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	p, ok := snapshot.Product(domain.ProductID(chi.URLParam(r, "product_id")))
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	dto, ok := productDTO(snapshot, p)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// productDTO renders sellable products only: active and with an active price.
func productDTO(snapshot *domain.CatalogSnapshot, p *domain.Product) (ProductDTO, bool) {
	if !p.Active {
		return ProductDTO{}, false
	}
	amount, currency, ok := priceOf(snapshot, p.ID)
	if !ok {
		return ProductDTO{}, false
	}
	return ProductDTO{
		ID:           p.ID.String(),
		Name:         p.Name,
		Description:  p.Description,
		Images:       p.Images,
		UnitAmount:   amount,
		Currency:     currency,
		PriceDisplay: domain.FormatAmount(amount, currency),
	}, true
}
