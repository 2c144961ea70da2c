package metrics

import "time"

// CacheMetrics is the instrumentation surface the Cache Manager reports
// through. Implementations must tolerate concurrent calls from multiple
// goroutines; a nil CacheMetrics is a valid, no-op collaborator.
type CacheMetrics interface {
	// ObserveRead records a read-path operation: bytes served, how long
	// it took, and whether the requested block was already resident.
	ObserveRead(bytes int64, duration time.Duration, hit bool)

	// ObserveWrite records a write-path operation.
	ObserveWrite(bytes int64, duration time.Duration)

	// RecordOccupancy reports the cache's current occupied block count
	// and byte size, typically sampled after eviction or flush.
	RecordOccupancy(blocks int64, bytes int64)

	// RecordEviction records one evicted cache entry. reason is a short
	// label such as "capacity" or "flush".
	RecordEviction(reason string)

	// RecordPrefetch records a completed prefetch of n blocks.
	RecordPrefetch(n int)

	// RecordFlush records a flush pass that persisted n dirty blocks.
	RecordFlush(n int, duration time.Duration)
}

// NewCacheMetrics returns a Prometheus-backed CacheMetrics, or nil if
// metrics have not been enabled via InitRegistry. Passing a nil
// CacheMetrics to the Cache Manager is always safe and has zero overhead.
func NewCacheMetrics() CacheMetrics {
	if !IsEnabled() {
		return nil
	}
	if newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is populated by pkg/metrics/prometheus's init,
// via RegisterCacheMetricsConstructor. The indirection keeps this package
// free of a direct dependency on the Prometheus client implementation,
// which itself depends on this package for IsEnabled/GetRegistry.
var newPrometheusCacheMetrics func() CacheMetrics

// RegisterCacheMetricsConstructor installs the Prometheus constructor.
// Called from pkg/metrics/prometheus's package init.
func RegisterCacheMetricsConstructor(constructor func() CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}
