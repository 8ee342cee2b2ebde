package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tagwire"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	codecOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "operations_total",
			Help:      "Record codec operations by type, operation and outcome.",
		},
		[]string{"type", "op", "outcome"},
	)
	codecBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "codec",
			Name:      "bytes",
			Help:      "Encoded record size in bytes for successful operations.",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 10),
		},
		[]string{"type", "op"},
	)
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Record store operations by backend, operation and outcome.",
		},
		[]string{"backend", "op", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, codecOps, codecBytes, storeOps)
	})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCodec counts one codec operation. size is observed only on success.
func RecordCodec(typeName, op string, size int, err error) {
	RegisterMetrics()
	codecOps.WithLabelValues(typeName, op, outcome(err)).Inc()
	if err == nil && size > 0 {
		codecBytes.WithLabelValues(typeName, op).Observe(float64(size))
	}
}

func RecordStore(backend, op string, err error) {
	RegisterMetrics()
	storeOps.WithLabelValues(backend, op, outcome(err)).Inc()
}
