// Package metrics holds the Prometheus collectors of the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Checkout outcomes.
const (
	OutcomeReused          = "reused"
	OutcomeCreated         = "created"
	OutcomeEmptyCart       = "empty_cart"
	OutcomeCreationFailed  = "creation_failed"
	OutcomeInvariantBroken = "invariant_violation"
	OutcomeError           = "error"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CheckoutsTotal     *prometheus.CounterVec
	CheckoutAmount     prometheus.Histogram
	CartOperations     *prometheus.CounterVec
	CartCacheRequests  *prometheus.CounterVec
	CatalogSyncsTotal  *prometheus.CounterVec
	CatalogSyncSeconds prometheus.Histogram
	CatalogProducts    prometheus.Gauge
	CatalogOpen        prometheus.Gauge
	CatalogFetchedAt   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CheckoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout reconciliations by outcome",
		}, []string{"outcome"}),
		CheckoutAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_amount_minor",
			Help:      "Cart total of successful checkouts in minor currency units",
			Buckets:   []float64{1000, 5000, 10000, 20000, 30000, 50000, 100000},
		}),
		CartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart mutations by operation",
		}, []string{"op"}),
		CartCacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_cache_requests_total",
			Help:      "Cart cache lookups by result",
		}, []string{"result"}),
		CatalogSyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_syncs_total",
			Help:      "Catalog syncs by result",
		}, []string{"result"}),
		CatalogSyncSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_sync_duration_seconds",
			Help:      "Catalog sync duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CatalogProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Products in the current snapshot",
		}),
		CatalogOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_open_sessions",
			Help:      "Open checkout sessions in the current snapshot",
		}),
		CatalogFetchedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_fetched_timestamp_seconds",
			Help:      "Unix time the current snapshot was fetched",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CheckoutsTotal,
		m.CheckoutAmount,
		m.CartOperations,
		m.CartCacheRequests,
		m.CatalogSyncsTotal,
		m.CatalogSyncSeconds,
		m.CatalogProducts,
		m.CatalogOpen,
		m.CatalogFetchedAt,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordCheckout(outcome string, amount int64) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeReused || outcome == OutcomeCreated {
		m.CheckoutAmount.Observe(float64(amount))
	}
}

func (m *Metrics) RecordCartOperation(op string) {
	if m == nil {
		return
	}
	m.CartOperations.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordCartCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CartCacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSync(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.CatalogSyncsTotal.WithLabelValues(result).Inc()
	m.CatalogSyncSeconds.Observe(d.Seconds())
}

func (m *Metrics) SetSnapshot(s *domain.CatalogSnapshot) {
	if m == nil || s == nil {
		return
	}
	m.CatalogProducts.Set(float64(len(s.Products)))
	m.CatalogOpen.Set(float64(s.OpenSessions()))
	m.CatalogFetchedAt.Set(float64(s.FetchedAt.Unix()))
}
