package webdav

import (
	"fmt"
	"strings"
	"time"
)

// WebDAVConfig holds configuration parameters for the WebDAV server.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - Prefix: "/dav"
//   - ReadTimeout: 10m
//   - WriteTimeout: 10m
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//
// Read and write timeouts bound whole request and response bodies, so they
// must leave room for the largest expected upload and download.
type WebDAVConfig struct {
	// Enabled controls whether the WebDAV adapter is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on. If 0, defaults to 8080.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// Prefix is the URL path mounts are served under: a folder with URL
	// "photos" is reachable at <prefix>/photos/. An empty prefix or "/"
	// serves mounts at the root.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// ReadTimeout is the maximum duration for reading a whole request,
	// body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a whole response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0" yaml:"write_timeout"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown. Must be > 0.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0" yaml:"shutdown_timeout"`

	// MaxPropfindDepth caps the levels a Depth: infinity PROPFIND may visit.
	// Deeper requests are refused with 403. 0 means unlimited.
	MaxPropfindDepth int `mapstructure:"max_propfind_depth" validate:"min=0" yaml:"max_propfind_depth"`

	// RateLimit throttles requests across all mounts.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket shared by all requests.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. 0 disables rate limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the bucket capacity. 0 uses RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *WebDAVConfig) applyDefaults() {
	// Enabled is defaulted in pkg/config so that an explicit false survives

	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.Prefix == "" {
		c.Prefix = "/dav"
	}
	c.Prefix = normalizePrefix(c.Prefix)
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *WebDAVConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MaxPropfindDepth < 0 {
		return fmt.Errorf("invalid MaxPropfindDepth %d: must be >= 0", c.MaxPropfindDepth)
	}
	return nil
}

// normalizePrefix returns prefix with a leading slash and no trailing slash.
// The root prefix is the empty string.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
