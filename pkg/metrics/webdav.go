package metrics

import "time"

// WebDAVMetrics provides observability for WebDAV adapter operations.
//
// Implementations collect request counts, latencies, in-flight requests,
// transferred bytes and lock table sizes. The interface is optional: if not
// provided to the WebDAV adapter, a no-op implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewWebDAVMetrics()
//	adapter := webdav.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := webdav.New(config, nil)
type WebDAVMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - method: HTTP method (e.g., "PROPFIND", "PUT")
	//   - mount: Mount name, empty when the request matched no mount
	//   - status: HTTP status code sent to the client
	//   - duration: Time taken to process the request
	RecordRequest(method, mount string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(method, mount string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(method, mount string)

	// RecordBytesTransferred records request or response body bytes.
	//
	// Parameters:
	//   - method: HTTP method
	//   - mount: Mount name
	//   - direction: "read" (sent to the client) or "write" (received)
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(method, mount, direction string, bytes int64)

	// SetActiveLocks updates the number of live locks of a mount.
	SetActiveLocks(mount string, count int)

	// RecordRateLimited counts a request rejected by the rate limiter.
	RecordRateLimited()
}

// NewNoopWebDAVMetrics returns a WebDAVMetrics that records nothing.
func NewNoopWebDAVMetrics() WebDAVMetrics {
	return noopWebDAVMetrics{}
}

// noopWebDAVMetrics is a no-op implementation of WebDAVMetrics.
type noopWebDAVMetrics struct{}

func (noopWebDAVMetrics) RecordRequest(string, string, int, time.Duration)     {}
func (noopWebDAVMetrics) RecordRequestStart(string, string)                    {}
func (noopWebDAVMetrics) RecordRequestEnd(string, string)                      {}
func (noopWebDAVMetrics) RecordBytesTransferred(string, string, string, int64) {}
func (noopWebDAVMetrics) SetActiveLocks(string, int)                           {}
func (noopWebDAVMetrics) RecordRateLimited()                                   {}
