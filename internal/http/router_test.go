package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "3b7f6a52-2a4e-4c55-9d1c-2f0d8f2b8e11"

type testEnv struct {
	carts    *mockCarts
	checkout *mockCheckout
	catalog  *mockCatalog
	metrics  *metrics.Metrics
	handler  http.Handler
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		carts:    newMockCarts(),
		checkout: &mockCheckout{},
		catalog:  &mockCatalog{snapshot: testSnapshot()},
		metrics:  metrics.New(),
	}
	deps := Deps{
		Carts:    env.carts,
		Checkout: env.checkout,
		Catalog:  env.catalog,
		Currency: "aud",
		Metrics:  env.metrics,
	}
	for _, fn := range configure {
		fn(&deps)
	}
	env.handler = NewRouter(Config{SyncToken: "s3cret"}, deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.AddCookie(&http.Cookie{Name: clientCookieName, Value: testClientID})
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["catalog"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env.catalog.snapshot, env.catalog.err = nil, catalog.ErrNotReady
	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/products", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		env.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/products", "200")))
}

func TestClientIDCookie(t *testing.T) {
	env := newTestEnv(t)

	t.Run("issued when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, clientCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		_, err := uuid.Parse(cookies[0].Value)
		assert.NoError(t, err)
	})

	t.Run("kept when valid", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/cart", "")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("replaced when malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.AddCookie(&http.Cookie{Name: clientCookieName, Value: "not-a-uuid"})
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		require.Len(t, rec.Result().Cookies(), 1)
		assert.NotEqual(t, "not-a-uuid", rec.Result().Cookies()[0].Value)
	})
}

func TestListProducts_OnlySellable(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	products := decode[[]ProductDTO](t, rec)
	require.Len(t, products, 2)
	assert.Equal(t, "Cup", products[0].Name)
	assert.Equal(t, "20.00 AUD", products[0].PriceDisplay)
	assert.Equal(t, "prod_A", products[1].ID)
	assert.Equal(t, int64(5000), products[1].UnitAmount)
}

func TestListProducts_CatalogNotReady(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.snapshot, env.catalog.err = nil, catalog.ErrNotReady

	rec := env.do(t, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "catalog_not_ready", decode[ErrorResponse](t, rec).Code)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/products/prod_A", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/products/prod_D", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/products/prod_zzz", "").Code)
}

func TestCart_AddGetRemove(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod_A"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod_A"}`)
	env.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"prod_B"}`)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[CartDTO](t, rec)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, CartItemDTO{ProductID: "prod_A", Name: "Tea pot", Quantity: 2, UnitAmount: 5000, LineTotal: 10000}, cart.Items[0])
	assert.Equal(t, int64(12000), cart.Total)
	assert.Equal(t, "120.00 AUD", cart.TotalDisplay)
	assert.Equal(t, uint64(3), cart.TotalQuantity)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/items/prod_A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint8(1), decode[CartDTO](t, rec).Items[0].Quantity)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/products/prod_B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[CartDTO](t, rec).Items, 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{testClientID}, env.carts.cleared)
}

func TestCart_InvalidProductIDOnRemove(t *testing.T) {
	env := newTestEnv(t)
	env.carts.err = fmt.Errorf("remove: %w", cart.ErrInvalidProductID)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/a.b", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_product_id", decode[ErrorResponse](t, rec).Code)
}

func TestCart_AddItemValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"product_id":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", `{"product_id":"prod_A","quantity":3}`, http.StatusBadRequest, "invalid_request"},
		{"missing product", `{}`, http.StatusBadRequest, "invalid_product_id"},
		{"unknown product", `{"product_id":"prod_zzz"}`, http.StatusNotFound, "product_not_found"},
		{"inactive price", `{"product_id":"prod_C"}`, http.StatusUnprocessableEntity, "product_unavailable"},
		{"no price", `{"product_id":"prod_D"}`, http.StatusUnprocessableEntity, "product_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/cart/items", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Code)
		})
	}
	assert.NotContains(t, env.carts.carts, testClientID)
}

func TestCart_UnpricedWhenCatalogNotReady(t *testing.T) {
	env := newTestEnv(t)
	env.carts.get(testClientID).Items = domain.Cart{"prod_A": 2}
	env.catalog.snapshot, env.catalog.err = nil, catalog.ErrNotReady

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[CartDTO](t, rec)
	assert.Equal(t, uint8(2), cart.Items[0].Quantity)
	assert.Zero(t, cart.Total)
}

func TestCheckout_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.res = &reconcile.Result{
		Session:        &domain.CheckoutSession{ID: "cs_new", URL: "https://pay.example/cs_new"},
		TotalAmount:    12000,
		ShippingRateID: "shr_paid",
	}

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[CheckoutResponseDTO](t, rec)
	assert.Equal(t, CheckoutResponseDTO{
		SessionID:      "cs_new",
		URL:            "https://pay.example/cs_new",
		Total:          12000,
		TotalDisplay:   "120.00 AUD",
		ShippingRateID: "shr_paid",
	}, body)
	assert.Equal(t, []string{testClientID}, env.checkout.clients)
}

func TestCheckout_ReusedIsOK(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.res = &reconcile.Result{Session: &domain.CheckoutSession{ID: "cs_open"}, Reused: true}

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CheckoutResponseDTO](t, rec).Reused)
}

func TestCheckout_Redirect(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.res = &reconcile.Result{Session: &domain.CheckoutSession{ID: "cs_new", URL: "https://pay.example/cs_new"}}

	rec := env.do(t, http.MethodPost, "/api/v1/checkout?redirect=true", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://pay.example/cs_new", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodPost, "/api/v1/checkout?redirect=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", reconcile.ErrEmptyCart, http.StatusConflict, "empty_cart"},
		{"unpriced product", &reconcile.CheckoutCreationError{ProductID: "prod_C", Reason: "no active price"},
			http.StatusUnprocessableEntity, "product_unavailable"},
		{"provider rejected", &reconcile.CheckoutCreationError{Reason: "provider rejected", Err: domain.ErrProviderRejected},
			http.StatusBadGateway, "checkout_rejected"},
		{"invariant", &reconcile.InvariantViolationError{SessionID: "cs_1", Detail: "no line items"},
			http.StatusInternalServerError, "invariant_violation"},
		{"not ready", catalog.ErrNotReady, http.StatusServiceUnavailable, "catalog_not_ready"},
		{"breaker open", gobreaker.ErrOpenState, http.StatusServiceUnavailable, "provider_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.checkout.err = tc.err

			rec := env.do(t, http.MethodPost, "/api/v1/checkout", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCheckout_Resume(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/checkout", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_open_session", decode[ErrorResponse](t, rec).Code)

	env.checkout.session = &domain.CheckoutSession{ID: "cs_open", URL: "https://pay.example/cs_open", AmountTotal: 5000, Currency: "aud"}
	rec = env.do(t, http.MethodGet, "/api/v1/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[CheckoutResponseDTO](t, rec)
	assert.Equal(t, "cs_open", body.SessionID)
	assert.Equal(t, "50.00 AUD", body.TotalDisplay)
}

func TestCheckout_History(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.attempts = []*checkout.Attempt{
		{ID: uuid.New(), SessionID: "cs_1", Outcome: metrics.OutcomeCreated, TotalAmount: 5000},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/checkout/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]AttemptDTO](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "cs_1", got[0].SessionID)
	assert.Equal(t, []int{5}, env.checkout.limits)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/checkout/history?limit=500", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/checkout/history?limit=x", "").Code)
}

func TestSync(t *testing.T) {
	syncReq := func(t *testing.T, env *testEnv, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("rejects bad token", func(t *testing.T) {
		syncer := &mockSyncer{snapshot: testSnapshot()}
		env := newTestEnv(t, func(d *Deps) { d.Syncer = syncer })
		assert.Equal(t, http.StatusUnauthorized, syncReq(t, env, "").Code)
		assert.Equal(t, http.StatusUnauthorized, syncReq(t, env, "wrong").Code)
		assert.Zero(t, syncer.calls)
	})

	t.Run("runs inline", func(t *testing.T) {
		syncer := &mockSyncer{snapshot: testSnapshot()}
		env := newTestEnv(t, func(d *Deps) { d.Syncer = syncer })
		rec := syncReq(t, env, "s3cret")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[SyncResponseDTO](t, rec)
		assert.Equal(t, "synced", body.Status)
		assert.Equal(t, 4, body.Products)
		assert.Equal(t, 1, body.OpenSessions)
	})

	t.Run("delegates to trigger", func(t *testing.T) {
		trigger := &mockTrigger{}
		env := newTestEnv(t, func(d *Deps) { d.Trigger = trigger })
		rec := syncReq(t, env, "s3cret")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, trigger.reqs, 1)
		assert.Equal(t, "manual", trigger.reqs[0].Reason)
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t)
		assert.Equal(t, http.StatusServiceUnavailable, syncReq(t, env, "s3cret").Code)
	})
}

func TestAdminRouter(t *testing.T) {
	cat := &mockCatalog{err: catalog.ErrNotReady}
	syncer := &mockSyncer{snapshot: testSnapshot()}
	h := NewAdminRouter(Config{SyncToken: "s3cret"}, cat, syncer, metrics.New(), nil)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, serve(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "synced", decode[SyncResponseDTO](t, rec).Status)
	assert.Equal(t, 1, syncer.calls)

	// Storefront routes are not served.
	assert.Equal(t, http.StatusNotFound, serve(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)).Code)
}
