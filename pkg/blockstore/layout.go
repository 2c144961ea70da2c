package blockstore

import (
	"path/filepath"
	"strconv"

	"github.com/marmos91/cachefs/pkg/pathhash"
)

// DataPartPath returns the on-disk path of a part's data file:
// <root>/<shard>/<fingerprint>.<partIdx>.blk
func DataPartPath(root string, fp pathhash.Fingerprint, partIdx uint32) string {
	return filepath.Join(root, fp.ShardDir(), fp.String()+"."+strconv.FormatUint(uint64(partIdx), 10)+".blk")
}

// BitmapPath returns the on-disk path of a part's dirty bitmap file:
// <root>/<shard>/<fingerprint>.<partIdx>.dmap
func BitmapPath(root string, fp pathhash.Fingerprint, partIdx uint32) string {
	return filepath.Join(root, fp.ShardDir(), fp.String()+"."+strconv.FormatUint(uint64(partIdx), 10)+".dmap")
}

// ShardDir returns the directory a fingerprint's parts live under.
func ShardDir(root string, fp pathhash.Fingerprint) string {
	return filepath.Join(root, fp.ShardDir())
}
