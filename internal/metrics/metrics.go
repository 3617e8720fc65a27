// Package metrics exposes Prometheus instrumentation for the auction core.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	bidsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "bids",
			Name:      "submitted_total",
			Help:      "Bid submissions by outcome reason.",
		},
		[]string{"outcome"},
	)
	bidLockDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "auction",
			Subsystem: "bids",
			Name:      "critical_section_seconds",
			Help:      "Time spent inside the per-auction bid critical section.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Auction status transitions by target status and trigger.",
		},
		[]string{"to", "trigger"},
	)
	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "scheduler",
			Name:      "sweep_runs_total",
			Help:      "Recovery sweep runs by kind and result.",
		},
		[]string{"kind", "result"},
	)
	sweepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "scheduler",
			Name:      "sweep_transitions_total",
			Help:      "Transitions driven by recovery sweeps.",
		},
		[]string{"kind"},
	)
	fanoutDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Fan-out deliveries by channel kind and result.",
		},
		[]string{"kind", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "auction",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// RegisterMetrics registers every collector with the default registry once
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			bidsTotal, bidLockDuration, transitionsTotal, sweepRuns, sweepTransitions,
			fanoutDeliveries, httpRequests, httpDuration,
		)
	})
}

func RecordBid(outcome string) {
	bidsTotal.WithLabelValues(outcome).Inc()
}

func ObserveBidCriticalSection(d time.Duration) {
	bidLockDuration.Observe(d.Seconds())
}

func RecordTransition(to, trigger string) {
	transitionsTotal.WithLabelValues(to, trigger).Inc()
}

func RecordSweep(kind string, transitions int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sweepRuns.WithLabelValues(kind, result).Inc()
	if transitions > 0 {
		sweepTransitions.WithLabelValues(kind).Add(float64(transitions))
	}
}

func RecordFanout(kind string, delivered, dropped int) {
	if delivered > 0 {
		fanoutDeliveries.WithLabelValues(kind, "delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		fanoutDeliveries.WithLabelValues(kind, "dropped").Add(float64(dropped))
	}
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RequestMetricsMiddleware records every request under its route template
func RequestMetricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
}

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	RegisterMetrics()
	return gin.WrapH(promhttp.Handler())
}
