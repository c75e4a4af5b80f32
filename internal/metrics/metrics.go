// Package metrics provides Prometheus metrics for the auction engine,
// grounded on StreetsDigital/thenexusengine's pbs/internal/metrics: a
// Metrics struct of CounterVec/HistogramVec/Gauge fields built in
// New and registered once, plus an HTTP middleware that wraps
// ResponseWriter to record status/duration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors exposed by the process.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	BidsTotal          *prometheus.CounterVec // result_code
	ProxyTriggers      prometheus.Counter
	SoftCloseExtends   prometheus.Counter
	LotsClosedTotal    *prometheus.CounterVec // final status
	InvoicesGenerated  prometheus.Counter
	BidRetries         prometheus.Counter
	SubscriberGauge    prometheus.Gauge
}

// New creates and registers all collectors under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auctionhouse"
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_in_flight", Help: "In-flight HTTP requests.",
		}),
		BidsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bids_total", Help: "Bids by result code.",
		}, []string{"result_code"}),
		ProxyTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "proxy_triggers_total", Help: "Times proxy auto-bid fired.",
		}),
		SoftCloseExtends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "soft_close_extensions_total", Help: "Lot close-time extensions.",
		}),
		LotsClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lots_closed_total", Help: "Lots closed by final status.",
		}, []string{"status"}),
		InvoicesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invoices_generated_total", Help: "Invoices generated.",
		}),
		BidRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bid_serialization_retries_total", Help: "place_bid retries after Aborted.",
		}),
		SubscriberGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "hub_subscribers", Help: "Currently connected hub subscribers.",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.RequestsInFlight,
		m.BidsTotal, m.ProxyTriggers, m.SoftCloseExtends, m.LotsClosedTotal,
		m.InvoicesGenerated, m.BidRetries, m.SubscriberGauge,
	)
	return m
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count/duration/in-flight for every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
