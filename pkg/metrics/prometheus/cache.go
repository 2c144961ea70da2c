// Package prometheus provides the Prometheus-backed implementation of
// pkg/metrics.CacheMetrics. Importing this package for side effects
// (registering the constructor) is sufficient to wire it in:
//
//	import _ "github.com/marmos91/cachefs/pkg/metrics/prometheus"
package prometheus

import (
	"time"

	"github.com/marmos91/cachefs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(func() metrics.CacheMetrics {
		return newCacheMetrics()
	})
}

// cacheMetrics is the Prometheus implementation of metrics.CacheMetrics.
type cacheMetrics struct {
	readOperations  *prometheus.CounterVec
	readDuration    *prometheus.HistogramVec
	readBytes       prometheus.Histogram
	writeOperations prometheus.Counter
	writeDuration   prometheus.Histogram
	writeBytes      prometheus.Histogram
	occupiedBlocks  prometheus.Gauge
	occupiedBytes   prometheus.Gauge
	evictions       *prometheus.CounterVec
	prefetchedTotal prometheus.Counter
	flushOperations prometheus.Counter
	flushBlocks     prometheus.Histogram
	flushDuration   prometheus.Histogram
}

func newCacheMetrics() *cacheMetrics {
	reg := metrics.GetRegistry()

	sizeBuckets := []float64{
		4096,     // sub-block
		65536,    // one block
		262144,   // 4 blocks
		1048576,  // 16 blocks
		4194304,  // 64 blocks
		16777216, // 256 blocks
	}

	return &cacheMetrics{
		readOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachefs_read_operations_total",
				Help: "Total read-path operations by hit/miss outcome",
			},
			[]string{"outcome"}, // "hit", "miss"
		),
		readDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cachefs_read_duration_seconds",
				Help:    "Duration of read-path operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		readBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachefs_read_bytes",
				Help:    "Distribution of bytes served on the read path",
				Buckets: sizeBuckets,
			},
		),
		writeOperations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cachefs_write_operations_total",
				Help: "Total write-path operations",
			},
		),
		writeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachefs_write_duration_seconds",
				Help:    "Duration of write-path operations",
				Buckets: prometheus.DefBuckets,
			},
		),
		writeBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachefs_write_bytes",
				Help:    "Distribution of bytes accepted on the write path",
				Buckets: sizeBuckets,
			},
		),
		occupiedBlocks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cachefs_occupied_blocks",
				Help: "Number of blocks currently resident in the cache",
			},
		),
		occupiedBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cachefs_occupied_bytes",
				Help: "Bytes currently resident in the cache",
			},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachefs_evictions_total",
				Help: "Total number of cache entries evicted, by reason",
			},
			[]string{"reason"}, // "capacity", "flush"
		),
		prefetchedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cachefs_prefetched_blocks_total",
				Help: "Total number of blocks populated by the prefetch pool",
			},
		),
		flushOperations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cachefs_flush_operations_total",
				Help: "Total number of flush passes executed",
			},
		),
		flushBlocks: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachefs_flush_blocks",
				Help:    "Distribution of dirty blocks persisted per flush pass",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
		),
		flushDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachefs_flush_duration_seconds",
				Help:    "Duration of flush passes",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *cacheMetrics) ObserveRead(bytes int64, duration time.Duration, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.readOperations.WithLabelValues(outcome).Inc()
	m.readDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if bytes > 0 {
		m.readBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) ObserveWrite(bytes int64, duration time.Duration) {
	m.writeOperations.Inc()
	m.writeDuration.Observe(duration.Seconds())
	if bytes > 0 {
		m.writeBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordOccupancy(blocks int64, bytes int64) {
	m.occupiedBlocks.Set(float64(blocks))
	m.occupiedBytes.Set(float64(bytes))
}

func (m *cacheMetrics) RecordEviction(reason string) {
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *cacheMetrics) RecordPrefetch(n int) {
	m.prefetchedTotal.Add(float64(n))
}

func (m *cacheMetrics) RecordFlush(n int, duration time.Duration) {
	m.flushOperations.Inc()
	m.flushBlocks.Observe(float64(n))
	m.flushDuration.Observe(duration.Seconds())
}
