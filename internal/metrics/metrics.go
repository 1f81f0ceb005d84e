// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanops_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanops_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanops_fineract_request_duration_seconds",
		Help:    "Latency of core-banking API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	UpstreamCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanops_fineract_cache_total",
		Help: "Reference-data cache lookups, labeled hit or miss",
	}, []string{"result"})

	AutoSaveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanops_autosave_total",
		Help: "Auto-save calls by operation and outcome",
	}, []string{"operation", "outcome"})

	StageMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanops_stage_moves_total",
		Help: "Pipeline stage moves, labeled by whether validation was overridden",
	}, []string{"overridden"})

	SagaOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanops_ussd_saga_total",
		Help: "USSD submission sagas by final state",
	}, []string{"state"})
)

// GinMiddleware records request count and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
