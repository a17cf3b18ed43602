// Package metrics exposes Prometheus collectors for the HTTP API and ordering.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tazhate/lunchbot/internal/domain"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersPlaced   prometheus.Counter
	ordersRejected *prometheus.CounterVec
	orderRevenue   prometheus.Counter
	webhookUpdates *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lunchbot",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunchbot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lunchbot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunchbot",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders accepted.",
		}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunchbot",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Orders refused, by reason.",
		}, []string{"reason"}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunchbot",
			Subsystem: "orders",
			Name:      "revenue_som_total",
			Help:      "Sum of accepted order prices in so'm.",
		}),
		webhookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunchbot",
			Subsystem: "bot",
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.ordersPlaced, m.ordersRejected, m.orderRevenue, m.webhookUpdates,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderPlaced(price domain.Amount) {
	m.ordersPlaced.Inc()
	m.orderRevenue.Add(float64(price))
}

func (m *Metrics) OrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) UpdateReceived(kind string) {
	m.webhookUpdates.WithLabelValues(kind).Inc()
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
