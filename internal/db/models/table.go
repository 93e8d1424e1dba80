package models

import "time"

// Table represents one table of a connected analytics database.
// Table-granularity permission rows reference it by ID; its schema name is
// denormalized onto those rows so schema-level queries avoid a join.
type Table struct {
	// ID is the unique identifier for the table.
	ID uint64 `gorm:"primaryKey"`
	// DatabaseID is the ID of the database this table belongs to.
	DatabaseID uint64 `gorm:"column:db_id;not null;index"`
	// Database is the associated database (loaded via foreign key).
	Database Database `gorm:"foreignKey:DatabaseID;constraint:OnDelete:CASCADE"`
	// SchemaName is the schema the table lives in.
	SchemaName string `gorm:"column:schema_name;size:255;not null"`
	// Name is the table name within its schema.
	Name string `gorm:"size:255;not null"`
	// CreatedAt is the timestamp when the table was registered (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the table was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Table model.
// This overrides GORM's default pluralized table naming.
func (Table) TableName() string {
	return "metadata_tables"
}
