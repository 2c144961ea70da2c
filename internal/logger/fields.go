package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently
// across log statements so aggregation and querying stay uniform.
const (
	// I/O operations
	KeyPath         = "path"          // object path / fingerprint source
	KeySize         = "size"          // size in bytes
	KeyOffset       = "offset"        // byte offset for range read/write
	KeyCount        = "count"         // byte count requested
	KeyBytesRead    = "bytes_read"    // actual bytes read
	KeyBytesWritten = "bytes_written" // actual bytes written
	KeyPartIdx      = "part_idx"      // part index within an object
	KeyBlockIdx     = "block_idx"     // block index within a part

	// Diagnostics
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric/symbolic error code
	KeyOperation  = "operation"   // sub-operation type

	// Object backend
	KeyStoreName  = "store_name"  // backend identifier (http, s3, mirror)
	KeyBucket     = "bucket"      // cloud bucket name (S3)
	KeyRegion     = "region"      // cloud region
	KeyKey        = "key"         // object key in backend storage
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts

	// Cache state
	KeyCacheHit      = "cache_hit"      // cache hit indicator
	KeyCacheState    = "cache_state"    // entry state: fresh, live, dirty, evicted
	KeyCacheSize     = "cache_size"     // current occupied bytes
	KeyCacheCapacity = "cache_capacity" // configured capacity in blocks
	KeyEvicted       = "evicted"        // number of entries evicted
	KeyHotness       = "hotness"        // weighted-LRU hotness score
)

// Path returns a slog.Attr for a file/object path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Size returns a slog.Attr for a size in bytes.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// Offset returns a slog.Attr for a byte offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Count returns a slog.Attr for a requested byte count.
func Count(c uint32) slog.Attr {
	return slog.Any(KeyCount, c)
}

// BytesRead returns a slog.Attr for actual bytes read.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// PartIdx returns a slog.Attr for a part index.
func PartIdx(idx uint32) slog.Attr {
	return slog.Any(KeyPartIdx, idx)
}

// BlockIdx returns a slog.Attr for a block index.
func BlockIdx(idx uint32) slog.Attr {
	return slog.Any(KeyBlockIdx, idx)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Operation returns a slog.Attr for a sub-operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// StoreName returns a slog.Attr for the object backend name.
func StoreName(name string) slog.Attr {
	return slog.String(KeyStoreName, name)
}

// Bucket returns a slog.Attr for a cloud bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Region returns a slog.Attr for a cloud region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Key returns a slog.Attr for an object key in backend storage.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry count.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// CacheHit returns a slog.Attr for a cache hit indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheState returns a slog.Attr for an entry's lifecycle state.
func CacheState(state string) slog.Attr {
	return slog.String(KeyCacheState, state)
}

// CacheSize returns a slog.Attr for the current occupied cache size.
func CacheSize(size int64) slog.Attr {
	return slog.Int64(KeyCacheSize, size)
}

// CacheCapacity returns a slog.Attr for the configured cache capacity.
func CacheCapacity(capacity int64) slog.Attr {
	return slog.Int64(KeyCacheCapacity, capacity)
}

// Evicted returns a slog.Attr for the number of entries evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Hotness returns a slog.Attr for a weighted-LRU hotness score.
func Hotness(h float64) slog.Attr {
	return slog.Float64(KeyHotness, h)
}
