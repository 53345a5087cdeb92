// Package metrics holds the prometheus collectors of the normalizer service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
)

const namespace = "rfqnorm"

// Metrics is the collector set. Each instance owns its registry so tests
// and multiple servers in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	InquiriesTotal    prometheus.Counter
	LegsTotal         prometheus.Counter
	NullFieldsTotal   *prometheus.CounterVec
	DroppedTotal      prometheus.Counter
	NormalizeDuration prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CatalogSyncTotal *prometheus.CounterVec
	CatalogProducts  prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		InquiriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inquiries_total",
			Help:      "Normalize calls",
		}),
		LegsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legs_total",
			Help:      "Quotes produced",
		}),
		NullFieldsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "null_fields_total",
			Help:      "Required quote fields left null, by field",
		}, []string{"field"}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_drops_total",
			Help:      "Resolved values nulled by a record invariant",
		}),
		NormalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "normalize_duration_seconds",
			Help:      "Normalize latency",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		CatalogSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "sync_total",
			Help:      "Catalog sync attempts by result",
		}, []string{"result"}),
		CatalogProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "products",
			Help:      "Products in the published keyword snapshot",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.InquiriesTotal,
		m.LegsTotal,
		m.NullFieldsTotal,
		m.DroppedTotal,
		m.NormalizeDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CatalogSyncTotal,
		m.CatalogProducts,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveInquiry records one Normalize call
func (m *Metrics) ObserveInquiry(quotes []contracts.InquiryQuote, dropped int, elapsed time.Duration) {
	m.InquiriesTotal.Inc()
	m.LegsTotal.Add(float64(len(quotes)))
	m.DroppedTotal.Add(float64(dropped))
	m.NormalizeDuration.Observe(elapsed.Seconds())

	for i := range quotes {
		for _, field := range quotes[i].NullFields() {
			m.NullFieldsTotal.WithLabelValues(field).Inc()
		}
	}
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveCatalogSync records a catalog refresh and the resulting product count
func (m *Metrics) ObserveCatalogSync(err error, products int) {
	if err != nil {
		m.CatalogSyncTotal.WithLabelValues("error").Inc()
		return
	}
	m.CatalogSyncTotal.WithLabelValues("ok").Inc()
	m.CatalogProducts.Set(float64(products))
}
