// Package prometheus implements the metrics interfaces on top of the
// Prometheus client library.
package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// webdavMetrics is the Prometheus implementation of metrics.WebDAVMetrics.
type webdavMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
	activeLocks      *prometheus.GaugeVec
	rateLimited      prometheus.Counter
}

// NewWebDAVMetrics creates a Prometheus-backed WebDAVMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewWebDAVMetrics() metrics.WebDAVMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopWebDAVMetrics()
	}
	return newWebDAVMetrics(metrics.GetRegistry())
}

func newWebDAVMetrics(reg prometheus.Registerer) *webdavMetrics {
	return &webdavMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_requests_total",
				Help: "Total number of WebDAV requests by method, mount and status code",
			},
			[]string{"method", "mount", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_request_duration_milliseconds",
				Help: "Duration of WebDAV requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method", "mount"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodav_requests_in_flight",
				Help: "Current number of WebDAV requests being processed",
			},
			[]string{"method", "mount"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_bytes_transferred_total",
				Help: "Total body bytes transferred by WebDAV requests",
			},
			[]string{"method", "mount", "direction"},
		),
		activeLocks: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodav_active_locks",
				Help: "Current number of live WebDAV locks per mount",
			},
			[]string{"mount"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

func (m *webdavMetrics) RecordRequest(method, mount string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, mount, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, mount).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *webdavMetrics) RecordRequestStart(method, mount string) {
	m.requestsInFlight.WithLabelValues(method, mount).Inc()
}

func (m *webdavMetrics) RecordRequestEnd(method, mount string) {
	m.requestsInFlight.WithLabelValues(method, mount).Dec()
}

func (m *webdavMetrics) RecordBytesTransferred(method, mount, direction string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(method, mount, direction).Add(float64(bytes))
}

func (m *webdavMetrics) SetActiveLocks(mount string, count int) {
	m.activeLocks.WithLabelValues(mount).Set(float64(count))
}

func (m *webdavMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
