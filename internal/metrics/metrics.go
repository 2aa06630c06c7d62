// Package metrics exposes Prometheus collectors for the komikverse web server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	proxyRequestsTotal         *prometheus.CounterVec
	upstreamCallsTotal         *prometheus.CounterVec
	bookmarkMutationsTotal     *prometheus.CounterVec
	wsClients                  prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "komikverse_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "komikverse_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		proxyRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "komikverse_proxy_requests_total",
				Help: "Total number of forwarded proxy requests, labeled by response code.",
			},
			[]string{"code"},
		)

		upstreamCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "komikverse_upstream_calls_total",
				Help: "Total number of catalog API calls, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		bookmarkMutationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "komikverse_bookmark_mutations_total",
				Help: "Total number of bookmark mutations, labeled by operation.",
			},
			[]string{"op"},
		)

		wsClients = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "komikverse_ws_clients",
				Help: "Number of connected bookmark sync websocket clients.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProxy counts one forwarded request by the status returned to the client.
func ObserveProxy(code int) {
	Init()
	proxyRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveUpstream counts one catalog call; outcome is "ok" or "error".
func ObserveUpstream(endpoint, outcome string) {
	Init()
	upstreamCallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveBookmark counts a bookmark mutation (add, remove, toggle_on, toggle_off).
func ObserveBookmark(op string) {
	Init()
	bookmarkMutationsTotal.WithLabelValues(op).Inc()
}

func IncWSClients() {
	Init()
	wsClients.Inc()
}

func DecWSClients() {
	Init()
	wsClients.Dec()
}

// Middleware records request count and latency, labeled by the matched route.
func Middleware() gin.HandlerFunc {
	Init()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
