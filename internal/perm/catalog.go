// Package perm implements the core of the data-permissions engine: the
// catalog of permission types with their ordered value lattices, and the
// coalescing rules that combine grants from multiple permission groups into
// one effective value.
package perm

import (
	"sort"

	"github.com/pkg/errors"
)

// Granularity describes whether a permission type attaches to a whole
// database or to individual tables.
type Granularity string

const (
	// GranularityDatabase marks types that attach to a whole database.
	GranularityDatabase Granularity = "database"
	// GranularityTable marks types that attach to individual tables.
	GranularityTable Granularity = "table"
)

// Type is a named access-control axis, e.g. data access or result download.
type Type string

const (
	// TypeDataAccess controls whether a group may query data at all.
	TypeDataAccess Type = "data-access"
	// TypeDownloadResults controls how many result rows a group may download.
	TypeDownloadResults Type = "download-results"
	// TypeManageTableMetadata controls editing of table metadata.
	TypeManageTableMetadata Type = "manage-table-metadata"
	// TypeNativeQueryEditing controls writing native (raw SQL) queries.
	TypeNativeQueryEditing Type = "native-query-editing"
	// TypeManageDatabase controls database administration.
	TypeManageDatabase Type = "manage-database"
)

// Value is a permission value drawn from a type's lattice.
type Value string

const (
	// ValueUnrestricted grants full data access.
	ValueUnrestricted Value = "unrestricted"
	// ValueNoSelfService allows only curated content, no ad-hoc querying.
	ValueNoSelfService Value = "no-self-service"
	// ValueBlock denies querying outright. Legal only database-wide and only
	// for the data-access type.
	ValueBlock Value = "block"

	// ValueOneMillionRows allows downloads of up to one million rows.
	ValueOneMillionRows Value = "one-million-rows"
	// ValueTenThousandRows allows downloads of up to ten thousand rows.
	ValueTenThousandRows Value = "ten-thousand-rows"

	// ValueYes grants a boolean-style permission.
	ValueYes Value = "yes"
	// ValueNo denies a boolean-style permission and is also the "no downloads"
	// value of the download-results lattice.
	ValueNo Value = "no"
)

// typeSpec describes one permission type: where it attaches and its value
// lattice ordered most permissive first.
type typeSpec struct {
	granularity Granularity
	values      []Value
}

var catalog = map[Type]typeSpec{
	TypeDataAccess:          {GranularityTable, []Value{ValueUnrestricted, ValueNoSelfService, ValueBlock}},
	TypeDownloadResults:     {GranularityTable, []Value{ValueOneMillionRows, ValueTenThousandRows, ValueNo}},
	TypeManageTableMetadata: {GranularityTable, []Value{ValueYes, ValueNo}},
	TypeNativeQueryEditing:  {GranularityDatabase, []Value{ValueYes, ValueNo}},
	TypeManageDatabase:      {GranularityDatabase, []Value{ValueYes, ValueNo}},
}

func lookup(t Type) (typeSpec, error) {
	s, ok := catalog[t]
	if !ok {
		return typeSpec{}, errors.Wrapf(ErrInvalidPermissionType, "unknown permission type %q", t)
	}

	return s, nil
}

// Types returns every registered permission type in stable (sorted) order.
func Types() []Type {
	out := make([]Type, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// GranularityOf returns the granularity of a permission type.
func GranularityOf(t Type) (Granularity, error) {
	s, err := lookup(t)
	if err != nil {
		return "", err
	}

	return s.granularity, nil
}

// Values returns a copy of the type's lattice, most permissive first.
func Values(t Type) ([]Value, error) {
	s, err := lookup(t)
	if err != nil {
		return nil, err
	}

	out := make([]Value, len(s.values))
	copy(out, s.values)

	return out, nil
}

// MostPermissive returns the first value of the type's lattice.
func MostPermissive(t Type) (Value, error) {
	s, err := lookup(t)
	if err != nil {
		return "", err
	}

	return s.values[0], nil
}

// LeastPermissive returns the last value of the type's lattice. It is the
// fallback result when a user holds no matching grant at all.
func LeastPermissive(t Type) (Value, error) {
	s, err := lookup(t)
	if err != nil {
		return "", err
	}

	return s.values[len(s.values)-1], nil
}

// LeastPermissiveAssignable returns the most restrictive value that may be
// written at table granularity. For data access this skips block, which only
// exists database-wide.
func LeastPermissiveAssignable(t Type) (Value, error) {
	s, err := lookup(t)
	if err != nil {
		return "", err
	}

	for i := len(s.values) - 1; i >= 0; i-- {
		if s.values[i] != ValueBlock {
			return s.values[i], nil
		}
	}

	return "", errors.Wrapf(ErrInvalidPermissionType, "type %q has no assignable value", t)
}

// index returns the lattice position of v, or -1 when v is not a member.
func (s typeSpec) index(v Value) int {
	for i, val := range s.values {
		if val == v {
			return i
		}
	}

	return -1
}

// Validate checks that v is a member of the type's lattice.
func Validate(t Type, v Value) error {
	s, err := lookup(t)
	if err != nil {
		return err
	}

	if s.index(v) < 0 {
		return errors.Wrapf(ErrInvalidPermissionValue, "value %q is not valid for permission type %q", v, t)
	}

	return nil
}

// AtLeastAsPermissive reports whether a grants at least as much access as b
// within the type's lattice. A lower lattice index is more permissive.
func AtLeastAsPermissive(t Type, a, b Value) (bool, error) {
	s, err := lookup(t)
	if err != nil {
		return false, err
	}

	ai, bi := s.index(a), s.index(b)
	if ai < 0 {
		return false, errors.Wrapf(ErrInvalidPermissionValue, "value %q is not valid for permission type %q", a, t)
	}

	if bi < 0 {
		return false, errors.Wrapf(ErrInvalidPermissionValue, "value %q is not valid for permission type %q", b, t)
	}

	return ai <= bi, nil
}
