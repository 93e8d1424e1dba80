// Package store provides row-level access to persisted permission grants.
// It is the only part of the permissions engine that touches durable state;
// the resolver and mutator consume it through the Store interface.
package store

import (
	"errors"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
)

var (
	// ErrTableNotFound is returned when a table metadata lookup misses.
	ErrTableNotFound = errors.New("table not found")
	// ErrUserNotFound is returned when a superuser check references an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// RowFilter narrows row queries. Nil fields match everything.
type RowFilter struct {
	GroupID    *uint
	Type       *perm.Type
	DatabaseID *uint64
}

// RowMatch selects permission rows for deletion under one
// (group, type, database) key.
type RowMatch struct {
	GroupID    uint
	Type       perm.Type
	DatabaseID uint64
	// TableIDs limits the match to specific table rows. Empty selects every
	// row under the key, including the database-wide one.
	TableIDs []uint64
}

// Store is the narrow row-access interface consumed by the permissions
// engine. Implementations must make Transaction compose every other
// operation into one atomic unit; the mutator relies on that for its
// delete-then-insert sequences.
type Store interface {
	// RowsForUser returns the permission rows of every group the user belongs
	// to, optionally narrowed by the filter's type and database.
	RowsForUser(userID uint64, f RowFilter) ([]models.PermissionRow, error)

	// RowsForGroup returns the rows persisted for one (group, type, database) key.
	RowsForGroup(groupID uint, t perm.Type, databaseID uint64) ([]models.PermissionRow, error)

	// Rows returns raw rows matching the filter, for graph building.
	Rows(f RowFilter) ([]models.PermissionRow, error)

	// SchemaValues returns the distinct values persisted on table rows of one
	// schema under a (group, type, database) key.
	SchemaValues(groupID uint, t perm.Type, databaseID uint64, schema string) ([]perm.Value, error)

	// DeleteRows removes the rows selected by the match.
	DeleteRows(m RowMatch) error

	// InsertRows persists new permission rows.
	InsertRows(rows []models.PermissionRow) error

	// TableMetadata returns id, database and schema for one table.
	TableMetadata(tableID uint64) (models.Table, error)

	// TablesInDatabase returns every table registered for a database.
	TablesInDatabase(databaseID uint64) ([]models.Table, error)

	// Databases lists registered databases, including internal audit
	// databases only when asked.
	Databases(includeAudit bool) ([]models.Database, error)

	// IsSuperuser reports whether the user holds the superuser bypass.
	IsSuperuser(userID uint64) (bool, error)

	// Transaction runs fn against a Store bound to a single database
	// transaction. Returning an error rolls every change back.
	Transaction(fn func(Store) error) error
}
