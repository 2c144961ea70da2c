// Package metadatastore persists the cache engine's object rows (§4.3:
// path, local_path, size, timestamp, last_accessed, dirty) in an
// embedded SQL database, and keeps the per-part dirty bitmaps that
// track which blocks of a fingerprint's parts have been written but
// not yet flushed. It is grounded on the control plane's GORM store
// (pkg/controlplane/store/gorm.go), trimmed to the single-node SQLite
// case and extended with the in-memory bitmap layer described in
// cache/policy/metadata/metadata_store.h.
package metadatastore

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/cachefs/internal/logger"
	"github.com/marmos91/cachefs/pkg/cacheerrors"
)

// Store is the embedded-SQL-backed object row store plus the in-memory
// dirty bitmap layer. The zero value is not usable; construct with New.
type Store struct {
	db     *gorm.DB
	config *Config

	bitmaps *bitmapTable
}

// New opens (creating if absent) the SQLite database at config.Path and
// runs AutoMigrate. The in-memory bitmap layer starts empty; bitmaps
// are loaded lazily per (fingerprint, part) on first touch.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("metadatastore: invalid config: %w", err)
	}

	if err := ensureParentDir(config.Path); err != nil {
		return nil, fmt.Errorf("metadatastore: create database directory: %w", err)
	}

	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("metadatastore: connect: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("metadatastore: migrate: %w", err)
	}

	return &Store{
		db:      db,
		config:  config,
		bitmaps: newBitmapTable(config.CacheRoot),
	}, nil
}

// DB returns the underlying GORM connection, mainly for tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Get fetches the row for path. It returns a *cacheerrors.Error with
// code ErrNotFound if no row exists.
func (s *Store) Get(path string) (*ObjectRow, error) {
	var row ObjectRow
	err := s.db.First(&row, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cacheerrors.NotFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("metadatastore: get %q: %w", path, err)
	}
	return &row, nil
}

// Put inserts or replaces the row for row.Path (insert-or-replace
// semantics per §4.3). Path is a string primary key that the caller
// always sets, so a plain Save would read as an update against a row
// that may not exist yet; Clauses(OnConflict) makes the insert-or-update
// explicit instead.
func (s *Store) Put(row *ObjectRow) bool {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		logger.Error("metadata store put failed", logger.Path(row.Path), logger.Err(err))
		return false
	}
	return true
}

// Touch updates last_accessed for path. Failures are logged, not
// surfaced, per §4.3 ("access-time updates that fail are logged but
// not surfaced to callers").
func (s *Store) Touch(path string, t time.Time) {
	err := s.db.Model(&ObjectRow{}).Where("path = ?", path).Update("last_accessed", t).Error
	if err != nil {
		logger.Warn("metadata store touch failed", logger.Path(path), logger.Err(err))
	}
}

// MarkDirty sets the dirty flag for path's row.
func (s *Store) MarkDirty(path string, dirty bool) bool {
	err := s.db.Model(&ObjectRow{}).Where("path = ?", path).Update("dirty", dirty).Error
	if err != nil {
		logger.Error("metadata store mark_dirty failed", logger.Path(path), logger.Err(err))
		return false
	}
	return true
}

// Remove deletes the row for path. A missing row is not an error.
func (s *Store) Remove(path string) bool {
	err := s.db.Where("path = ?", path).Delete(&ObjectRow{}).Error
	if err != nil {
		logger.Error("metadata store remove failed", logger.Path(path), logger.Err(err))
		return false
	}
	return true
}

// AllEntries returns every row in the store.
func (s *Store) AllEntries() ([]ObjectRow, error) {
	var rows []ObjectRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("metadatastore: all_entries: %w", err)
	}
	return rows, nil
}

// Cleanup removes rows whose local mirror no longer has a corresponding
// live cache entry. The Cache Manager owns the definition of "still
// live"; Cleanup just performs the bulk delete for the paths it is told
// to drop.
func (s *Store) Cleanup(stalePaths []string) bool {
	if len(stalePaths) == 0 {
		return true
	}
	err := s.db.Where("path IN ?", stalePaths).Delete(&ObjectRow{}).Error
	if err != nil {
		logger.Error("metadata store cleanup failed", logger.Err(err))
		return false
	}
	return true
}
