package models

import (
	"time"

	"github.com/glassview-analytics/glassview/internal/perm"
)

// PermissionRow is one persisted grant: a permission value a group holds for
// a database or for a single table within it.
//
// Invariants (enforced procedurally by the mutation engine, not by storage
// constraints): database-granularity types never carry a table ID; for
// table-granularity types an absent table ID means the grant applies to every
// table in the database, and a database-wide row never coexists with
// table-scoped rows for the same (group, type, database) key.
type PermissionRow struct {
	// ID is the unique identifier for the row.
	ID uint64 `gorm:"primaryKey"`
	// GroupID is the permission group holding the grant.
	GroupID uint `gorm:"column:group_id;not null;uniqueIndex:idx_perm_row_key"`
	// PermType is the permission type of the grant.
	PermType perm.Type `gorm:"column:perm_type;size:50;not null;uniqueIndex:idx_perm_row_key"`
	// DatabaseID is the database the grant applies to.
	DatabaseID uint64 `gorm:"column:db_id;not null;uniqueIndex:idx_perm_row_key"`
	// TableID is the table the grant applies to. Nil means the grant covers
	// every table in the database (or the whole database, for
	// database-granularity types).
	TableID *uint64 `gorm:"column:table_id;uniqueIndex:idx_perm_row_key"`
	// SchemaName is the schema of the referenced table. Nil for database-wide rows.
	SchemaName *string `gorm:"column:schema_name;size:255"`
	// PermValue is the granted value, drawn from the type's lattice.
	PermValue perm.Value `gorm:"column:perm_value;size:50;not null"`
	// CreatedAt is the timestamp when the row was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the row was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the PermissionRow model.
// This overrides GORM's default pluralized table naming.
func (PermissionRow) TableName() string {
	return "data_permissions"
}

// Scope returns the resource scope of the row as an explicit sum type.
func (r *PermissionRow) Scope() perm.Scope {
	if r.TableID == nil {
		return perm.DatabaseScope()
	}

	schema := ""
	if r.SchemaName != nil {
		schema = *r.SchemaName
	}

	return perm.TableScope(*r.TableID, schema)
}
