package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/provider"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return validateRequest(w, dst)
}

func validateRequest(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Code:    "invalid_" + fe.Field(),
			Details: fe.Field() + " failed on " + fe.Tag(),
		})
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	return false
}

// handleServiceError maps service errors to HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		creationErr  *reconcile.CheckoutCreationError
		invariantErr *reconcile.InvariantViolationError
	)
	log = logger.For(r.Context(), log)

	switch {
	case errors.Is(err, reconcile.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.As(err, &creationErr) && creationErr.ProductID != "":
		respondError(w, http.StatusUnprocessableEntity, "product_unavailable", creationErr.Error())
	case errors.As(err, &creationErr):
		respondError(w, http.StatusBadGateway, "checkout_rejected", creationErr.Error())
	case errors.As(err, &invariantErr):
		log.Error("invariant violation", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "invariant_violation", "internal server error")
	case errors.Is(err, cart.ErrInvalidProductID):
		respondError(w, http.StatusBadRequest, "invalid_product_id", err.Error())
	case errors.Is(err, catalog.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, "catalog_not_ready", "catalog is not loaded yet")
	case errors.Is(err, checkout.ErrNoOpenSession):
		respondError(w, http.StatusNotFound, "no_open_session", err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "provider_unavailable", "payment provider is unavailable")
	case errors.Is(err, provider.ErrUnauthorized):
		log.Error("payment provider refused credentials", zap.Error(err))
		respondError(w, http.StatusBadGateway, "provider_error", "payment provider error")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func priceOf(snapshot *domain.CatalogSnapshot, id domain.ProductID) (int64, string, bool) {
	if snapshot == nil {
		return 0, "", false
	}
	p, ok := snapshot.DefaultPrice(id)
	if !ok || !p.Active || p.UnitAmount == nil {
		return 0, "", false
	}
	return *p.UnitAmount, p.Currency, true
}
