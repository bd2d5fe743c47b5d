// Package ratelimiter throttles incoming HTTP requests with a token bucket.
package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides request rate limiting using the token bucket algorithm.
//
// Tokens are added at a constant rate (requests per second) up to the burst
// capacity; each request consumes one. When the bucket is empty, requests
// are rejected by Allow and Middleware.
//
// A RateLimiter created with a zero rate never limits.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter with the specified rate and burst capacity.
//
// Parameters:
//   - requestsPerSecond: Maximum sustained rate (0 = unlimited)
//   - burst: Maximum burst size; 0 uses requestsPerSecond
//
// Example:
//
//	// Allow 100 req/s sustained, bursts of 200
//	limiter := New(100, 200)
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter never rejects.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow checks if a request is allowed under the current rate limit,
// consuming a token if so. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// RetryAfter returns how long a rejected client should wait before the next
// token is available, rounded up to whole seconds (at least one).
func (r *RateLimiter) RetryAfter() time.Duration {
	res := r.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()

	seconds := math.Ceil(delay.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// Middleware rejects requests over the limit with 503 Service Unavailable
// and a Retry-After header.
//
// Parameters:
//   - onReject: Called for every rejected request (may be nil), e.g. to
//     count rejections
func (r *RateLimiter) Middleware(onReject func(*http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r.Unlimited() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Allow() {
				next.ServeHTTP(w, req)
				return
			}

			if onReject != nil {
				onReject(req)
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(r.RetryAfter().Seconds())))
			http.Error(w, "rate limit exceeded", http.StatusServiceUnavailable)
		})
	}
}
