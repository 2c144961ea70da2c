package pathhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIsDeterministic(t *testing.T) {
	a := Hash("/data/reports/q3.csv")
	b := Hash("/data/reports/q3.csv")
	assert.Equal(t, a, b)
}

func TestHashLength(t *testing.T) {
	f := Hash("/anything")
	assert.Len(t, f.String(), FingerprintLen)
}

func TestHashDistinguishesPaths(t *testing.T) {
	a := Hash("/a")
	b := Hash("/b")
	assert.NotEqual(t, a, b)
}

func TestShardDirSplitsFirstTwoBytes(t *testing.T) {
	f := Fingerprint("3fa2deadbeef0011")
	assert.Equal(t, "3f/a2", f.ShardDir())
}

func TestShardDirLowercaseHex(t *testing.T) {
	f := Hash("/some/path/with/unicode/éè")
	dir := f.ShardDir()
	for _, r := range dir {
		assert.True(t, r == '/' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}
