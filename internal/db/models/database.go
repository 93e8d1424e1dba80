package models

import "time"

// Database represents a connected analytics database that permissions attach to.
// Each tenant database is registered here; permission rows reference it by ID.
type Database struct {
	// ID is the unique identifier for the database.
	ID uint64 `gorm:"primaryKey"`
	// Name is the display name of the database.
	Name string `gorm:"size:255;not null"`
	// Engine is the underlying database engine (e.g. "postgres", "mysql").
	Engine string `gorm:"size:50"`
	// IsAudit marks internal audit databases, which are hidden from the
	// permissions graph unless explicitly requested.
	IsAudit bool `gorm:"column:is_audit;not null;default:false"`
	// CreatedAt is the timestamp when the database was registered (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the database was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Database model.
// This overrides GORM's default pluralized table naming.
func (Database) TableName() string {
	return "databases"
}
