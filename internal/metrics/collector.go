// Package metrics exposes Prometheus metrics for the HTTP layer, the geometry
// kernel and the shape pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every metric the service records.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	kernelOpsTotal   *prometheus.CounterVec
	kernelOpDuration *prometheus.HistogramVec

	shapesGenerated *prometheus.CounterVec
	projectsSaved   *prometheus.CounterVec
	libraryFetches  *prometheus.CounterVec

	logger *zap.Logger
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewCollector registers the service metrics on reg.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.kernelOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kernel_operations_total",
			Help:      "Total number of geometry kernel operations",
		},
		[]string{"op", "status"},
	)

	c.kernelOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kernel_operation_duration_seconds",
			Help:      "Geometry kernel operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"op"},
	)

	c.shapesGenerated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shapes_generated_total",
			Help:      "Total number of preview shapes generated",
		},
		[]string{"shape", "source"}, // source: prompt, params
	)

	c.projectsSaved = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_saved_total",
			Help:      "Total number of project saves",
		},
		[]string{"status"},
	)

	c.libraryFetches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_fetches_total",
			Help:      "Total number of library shape conversions",
		},
		[]string{"status"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if responseSize > 0 {
		c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordKernelOperation implements kernel.Recorder.
func (c *Collector) RecordKernelOperation(op, status string, duration time.Duration) {
	c.kernelOpsTotal.WithLabelValues(op, status).Inc()
	c.kernelOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (c *Collector) RecordShapeGenerated(shape, source string) {
	c.shapesGenerated.WithLabelValues(shape, source).Inc()
}

func (c *Collector) RecordProjectSave(status string) {
	c.projectsSaved.WithLabelValues(status).Inc()
}

func (c *Collector) RecordLibraryFetch(status string) {
	c.libraryFetches.WithLabelValues(status).Inc()
}

// statusCode collapses an HTTP status into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
