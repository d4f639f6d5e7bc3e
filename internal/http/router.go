// Package http exposes the storefront over a JSON HTTP API.
package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Config struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SyncToken       string        `mapstructure:"sync_token"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
}

// Deps are the services behind the routes. Syncer and Trigger are optional.
type Deps struct {
	Carts    CartService
	Checkout CheckoutService
	Catalog  Catalog
	Syncer   Syncer
	Trigger  reconcile.SyncTrigger
	Currency string
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func NewRouter(cfg Config, d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	products := NewProductHandler(d.Catalog, log)
	carts := NewCartHandler(d.Carts, d.Catalog, timeout, log)
	checkouts := NewCheckoutHandler(d.Checkout, d.Currency, timeout, log)
	sync := NewSyncHandler(d.Syncer, d.Trigger, cfg.SyncToken, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(log, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	mountHealth(r, d.Catalog, d.Metrics, log)
	r.Post("/api/sync", sync.Sync)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ClientIDMiddleware(cfg.SecureCookies))

		r.Get("/products", products.ListProducts)
		r.Get("/products/{product_id}", products.GetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.Delete("/products/{product_id}", carts.DeleteItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkouts.Checkout)
			r.Get("/", checkouts.Resume)
			r.Get("/history", checkouts.History)
		})
	})

	return otelhttp.NewHandler(r, "storefront.http")
}

// NewAdminRouter serves a process that only syncs the catalog: health checks,
// metrics and the manual sync endpoint.
func NewAdminRouter(cfg Config, c Catalog, syncer Syncer, m *metrics.Metrics, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(log, m))
	r.Use(middleware.Recoverer)

	mountHealth(r, c, m, log)
	r.Post("/api/sync", NewSyncHandler(syncer, nil, cfg.SyncToken, log).Sync)

	return otelhttp.NewHandler(r, "catalog-sync.http")
}

func mountHealth(r chi.Router, c Catalog, m *metrics.Metrics, log *zap.Logger) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		state := "ready"
		if _, err := c.Snapshot(); err != nil {
			state = "not_ready"
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "catalog": state})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := c.Snapshot(); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
}

// NewServer returns an http.Server for h with the configured timeouts.
func NewServer(cfg Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      h,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
