// Package metrics provides Prometheus metrics collection for dittodav.
//
// Collection is optional. Until InitRegistry is called GetRegistry returns
// nil and the collector constructors hand out no-op implementations, so the
// WebDAV adapter records requests the same way in both modes.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewWebDAVMetrics()
//	adapter := webdav.New(config, m)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry, pre-loaded with the Go
// runtime and process collectors. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "dittodav"}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil when collection is disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
