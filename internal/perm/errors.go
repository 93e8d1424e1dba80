package perm

import "errors"

var (
	// ErrInvalidPermissionType is returned when a permission type is not registered in the catalog.
	ErrInvalidPermissionType = errors.New("invalid permission type")

	// ErrInvalidPermissionValue is returned when a value is outside the lattice of its permission type.
	ErrInvalidPermissionValue = errors.New("invalid permission value")

	// ErrWrongGranularity is returned when an operation is issued at the wrong resource
	// level for the permission type (e.g. a table query against a database-level type).
	ErrWrongGranularity = errors.New("wrong granularity for permission type")

	// ErrCrossDatabaseMutation is returned when a batched table mutation spans more than one database.
	ErrCrossDatabaseMutation = errors.New("table permission batch spans multiple databases")

	// ErrIllegalBlockAssignment is returned when block is requested at table granularity,
	// or for a permission type other than data access.
	ErrIllegalBlockAssignment = errors.New("block cannot be assigned at this scope")
)
