// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for registry traffic. Labels
// are route patterns, never raw paths: content ids, stream tokens and
// addresses would otherwise become label values. Requests that match no
// route share the "unmatched" label.
//
// Byte streams are measured apart from JSON calls. A stream request holds a
// connection for as long as the media chunk takes to proxy, so folding it
// into the API latency histogram would hide slow purchases behind slow
// downloads.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// unmatchedRoute labels requests that hit NoRoute.
	unmatchedRoute = "unmatched"
	// streamRouteSuffix identifies the gated byte stream route.
	streamRouteSuffix = "/stream/:token"
)

var (
	// httpReqs counts requests by method, route and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// httpLat records API call duration. Streams are excluded.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds, streams excluded.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// httpInflight gauges requests currently being served.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize captures JSON response sizes; listings top out around a
	// page of 100 records.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_http_response_size_bytes",
			Help:    "Size of API responses in bytes, streams excluded.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 7), // 256B..1MiB
		},
		[]string{"method", "route"},
	)

	// streamDur records how long one proxied chunk took, by status (200 full
	// object, 206 range, 416 unsatisfiable, 502 gateway failure).
	streamDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_stream_duration_seconds",
			Help:    "Duration of gated stream responses in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// streamBytes counts media bytes proxied to entitled viewers.
	streamBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_stream_bytes_total",
			Help: "Bytes proxied by the gated stream route, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, streamDur, streamBytes)
}

// routeLabel returns the registered route pattern of c, or "unmatched".
func routeLabel(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return unmatchedRoute
}

// Metrics instruments every request. Stream responses feed the stream
// collectors instead of the API latency and size histograms.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		route := routeLabel(c)
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())
		size := c.Writer.Size() // -1 when nothing was written

		httpReqs.WithLabelValues(method, route, status).Inc()

		if strings.HasSuffix(route, streamRouteSuffix) {
			streamDur.WithLabelValues(status).Observe(dur)
			if size > 0 {
				streamBytes.WithLabelValues(status).Add(float64(size))
			}
			return
		}
		httpLat.WithLabelValues(method, route).Observe(dur)
		if size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
