// Package middleware contains the Gin middleware used by the ops HTTP server.
//
// This file instruments ops HTTP traffic with Prometheus. Labels are the
// method, the matched route (never the raw URL, to bound cardinality), and
// the status code.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// opsRequests counts requests by method, route, and status.
	opsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_ops_http_requests_total",
			Help: "Total number of ops HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// opsLatency observes request duration by method and route.
	opsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_ops_http_request_duration_seconds",
			Help:    "Duration of ops HTTP requests in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// opsInflight gauges requests currently being served.
	opsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_ops_http_requests_inflight",
			Help: "Current number of in-flight ops HTTP requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(opsRequests, opsLatency, opsInflight)
}

// Metrics records request count, latency, and concurrency. Unmatched routes
// are labelled "unmatched" rather than by raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		opsInflight.Inc()
		defer opsInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		opsRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		opsLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
