// Package metrics provides an optional, nil-safe metrics facade for the
// cache engine. Callers that never call InitRegistry get a disabled
// collaborator everywhere and pay no instrumentation overhead.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry creates and installs the process-wide Prometheus registry
// used by the cache engine's metrics. Calling it more than once replaces
// the previous registry; existing collectors registered against the old
// one are not migrated.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
