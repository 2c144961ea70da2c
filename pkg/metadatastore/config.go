package metadatastore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config configures the SQLite-backed metadata store. The cache engine
// runs as a single local process against its own cache root, so unlike
// the control plane's store this has no clustered-database option: a
// keyed embedded store is all §4.3 asks for, and SQLite is the
// embedded SQL engine the rest of this module already depends on.
type Config struct {
	// Path is the SQLite database file. Default: <CacheRoot>/metadata.db.
	Path string

	// CacheRoot is the directory the Block Store writes parts under.
	// Bitmap files live alongside the data parts there, so the
	// metadata store needs it to resolve <fingerprint>.<part>.dmap
	// paths for FlushBitmaps and lazy bitmap loading.
	CacheRoot string
}

// ApplyDefaults fills in Path from CacheRoot when unset.
func (c *Config) ApplyDefaults() {
	if c.Path == "" && c.CacheRoot != "" {
		c.Path = filepath.Join(c.CacheRoot, "metadata.db")
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("metadatastore: cache root is required")
	}
	if c.Path == "" {
		return fmt.Errorf("metadatastore: database path is required")
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
