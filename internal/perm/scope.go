package perm

import "fmt"

// Scope identifies what a permission row attaches to: the whole database or
// exactly one table. It replaces the ambiguous "absent table id means whole
// database" sentinel with an explicit sum type.
type Scope struct {
	tableID uint64
	schema  string
	whole   bool
}

// DatabaseScope returns the scope covering every table in a database.
func DatabaseScope() Scope {
	return Scope{whole: true}
}

// TableScope returns the scope covering a single table in its schema.
func TableScope(tableID uint64, schema string) Scope {
	return Scope{tableID: tableID, schema: schema}
}

// IsDatabaseWide reports whether the scope covers the whole database.
func (s Scope) IsDatabaseWide() bool {
	return s.whole
}

// TableID returns the table the scope attaches to. The boolean result is
// false for a database-wide scope.
func (s Scope) TableID() (uint64, bool) {
	if s.whole {
		return 0, false
	}

	return s.tableID, true
}

// Schema returns the schema name of a table scope, or the empty string for a
// database-wide scope.
func (s Scope) Schema() string {
	return s.schema
}

// String renders the scope for logs and summaries.
func (s Scope) String() string {
	if s.whole {
		return "whole database"
	}

	return fmt.Sprintf("table %d (schema %q)", s.tableID, s.schema)
}
