package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_tracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crypto_tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Quote metrics
	QuoteFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_tracker_quote_fetches_total",
			Help: "Total number of quote provider calls",
		},
		[]string{"status"}, // status: success|error
	)

	QuoteSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypto_tracker_quote_symbols",
			Help: "Number of symbols in the current quote snapshot",
		},
	)

	// Lifecycle metrics
	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_tracker_positions_closed_total",
			Help: "Total number of close operations",
		},
		[]string{"result"}, // result: full|partial
	)

	// Running sum of realized P/L. Losses are added as negative values.
	RealizedPL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypto_tracker_realized_pl_usd",
			Help: "Sum of realized profit and loss in USD since start",
		},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		QuoteFetches,
		QuoteSymbols,
		PositionsClosed,
		RealizedPL,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
