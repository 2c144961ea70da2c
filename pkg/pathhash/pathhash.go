// Package pathhash turns an object path into the 16-hex-character
// fingerprint used to name everything the cache engine stores on disk:
// data parts, dirty bitmaps, and their two-level shard directories.
package pathhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// FingerprintLen is the length, in hex characters, of a Fingerprint.
const FingerprintLen = 16

// Fingerprint is the hex-encoded, fixed-width digest of an object path.
// It is not a content identifier: two distinct paths that collide map
// to the same on-disk part and bitmap file names, but never share entry
// identity. Callers must keep comparing the original path string when
// resolving a cache hit.
type Fingerprint string

// Hash computes the Fingerprint for an object path.
func Hash(path string) Fingerprint {
	sum := xxhash.Sum64String(path)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return Fingerprint(hex16(buf))
}

const hexDigits = "0123456789abcdef"

func hex16(buf [8]byte) string {
	out := make([]byte, FingerprintLen)
	for i, b := range buf {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// ShardDir returns the two-level, two-hex-character shard path derived
// from the first byte and second byte of the fingerprint, e.g. "3f/a2".
func (f Fingerprint) ShardDir() string {
	s := string(f)
	if len(s) < 4 {
		// Defensive only: Hash always produces FingerprintLen characters.
		return s
	}
	return s[0:2] + "/" + s[2:4]
}

// String returns the fingerprint's hex representation.
func (f Fingerprint) String() string {
	return string(f)
}
