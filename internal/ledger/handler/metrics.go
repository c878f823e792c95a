package handler

import (
	"strconv"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerAgentsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentledger_agents_total",
		Help: "Number of registered agents.",
	})

	ledgerEventsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentledger_events_appended_total",
		Help: "Total event-log records appended by kind.",
	}, []string{"kind"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// setAgentsGauge records the current number of registered agents.
func setAgentsGauge(count float64) {
	ledgerAgentsTotal.Set(count)
}

// recordEventAppended counts records appended by successful operations.
func recordEventAppended(kind model.Kind, n int) {
	ledgerEventsAppendedTotal.WithLabelValues(string(kind)).Add(float64(n))
}
