package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// SignInExchanges counts callback exchanges by provider category and
	// terminal outcome.
	SignInExchanges *prometheus.CounterVec
	// AuthURLsBuilt counts authorization URLs composed per provider type.
	AuthURLsBuilt *prometheus.CounterVec
	// RecoveryCodesSent counts one-time codes requested per destination.
	RecoveryCodesSent *prometheus.CounterVec
}

// NewMetrics registers and returns the gateway's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signgate_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"code", "method", "path"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signgate_http_request_duration_seconds",
				Help:    "Histogram of latencies for HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method", "path"},
		),
		SignInExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signgate_signin_exchanges_total",
				Help: "Callback exchanges by provider category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		AuthURLsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signgate_auth_urls_built_total",
				Help: "Authorization URLs composed per provider type.",
			},
			[]string{"provider"},
		),
		RecoveryCodesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signgate_recovery_codes_sent_total",
				Help: "Password-recovery codes requested per destination.",
			},
			[]string{"dest"},
		),
	}
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.SignInExchanges,
		m.AuthURLsBuilt,
		m.RecoveryCodesSent,
	)
	return m
}

// PrometheusMiddleware records request counts and latencies.
func PrometheusMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.RequestsTotal.WithLabelValues(code, method, path).Inc()
		metrics.RequestDuration.WithLabelValues(code, method, path).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler serves the metrics endpoint.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
