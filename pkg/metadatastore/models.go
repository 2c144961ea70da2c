package metadatastore

import "time"

// ObjectRow is the persisted record for one cached object. It maps
// directly onto the `objects` table: path is the primary key, and
// local_path is the write-through mirror file the Cache Manager reads
// and appends to under its cache root. local_path is informational for
// a block-granular cache (the object's actual bytes live across many
// per-part .blk files named by fingerprint, not in a single file) but
// is kept so the row still answers "where would a full copy of this
// object be found" the same way the original file-level cache did.
type ObjectRow struct {
	Path         string `gorm:"primaryKey"`
	LocalPath    string
	Size         int64
	Timestamp    time.Time
	LastAccessed time.Time
	Dirty        bool
}

// TableName pins the GORM table name to "objects" regardless of the
// struct name.
func (ObjectRow) TableName() string {
	return "objects"
}

// AllModels lists every model AutoMigrate must create.
func AllModels() []any {
	return []any{&ObjectRow{}}
}
