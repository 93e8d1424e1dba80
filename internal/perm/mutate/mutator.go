// Package mutate implements the write side of the data-permissions engine.
// Every operation runs inside one atomic row-store transaction and maintains
// the invariant that a database-wide row and table-scoped rows never coexist
// for the same (group, type, database) key.
package mutate

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/store"
)

// Mutator is the public write API of the permissions engine.
type Mutator struct {
	store store.Store
}

// New creates a Mutator backed by the given row store.
func New(s store.Store) *Mutator {
	return &Mutator{store: s}
}

func databaseRow(groupID uint, t perm.Type, databaseID uint64, v perm.Value) models.PermissionRow {
	return models.PermissionRow{
		GroupID:    groupID,
		PermType:   t,
		DatabaseID: databaseID,
		PermValue:  v,
	}
}

func tableRow(groupID uint, t perm.Type, table models.Table, v perm.Value) models.PermissionRow {
	tableID := table.ID
	schema := table.SchemaName

	return models.PermissionRow{
		GroupID:    groupID,
		PermType:   t,
		DatabaseID: table.DatabaseID,
		TableID:    &tableID,
		SchemaName: &schema,
		PermValue:  v,
	}
}

// replaceWithDatabaseRow swaps every row under the key for one database-wide row.
func replaceWithDatabaseRow(s store.Store, groupID uint, databaseID uint64, t perm.Type, v perm.Value) error {
	if err := s.DeleteRows(store.RowMatch{GroupID: groupID, Type: t, DatabaseID: databaseID}); err != nil {
		return err
	}

	return s.InsertRows([]models.PermissionRow{databaseRow(groupID, t, databaseID, v)})
}

// SetDatabasePermission atomically replaces all rows for (group, type,
// database) with a single database-wide row. Blocking data access cascades:
// native-query editing and result downloads are forced to their most
// restrictive value for the same group and database, so a block never leaves
// adjacent privileges open.
func (m *Mutator) SetDatabasePermission(groupID uint, databaseID uint64, t perm.Type, v perm.Value) error {
	if v == perm.ValueBlock && t != perm.TypeDataAccess {
		return errors.Wrapf(perm.ErrIllegalBlockAssignment, "block is not a %q value", t)
	}

	if err := perm.Validate(t, v); err != nil {
		return err
	}

	return m.store.Transaction(func(s store.Store) error {
		if err := replaceWithDatabaseRow(s, groupID, databaseID, t, v); err != nil {
			return err
		}

		if t == perm.TypeDataAccess && v == perm.ValueBlock {
			for _, cascaded := range []perm.Type{perm.TypeNativeQueryEditing, perm.TypeDownloadResults} {
				least, err := perm.LeastPermissive(cascaded)
				if err != nil {
					return err
				}

				if err := replaceWithDatabaseRow(s, groupID, databaseID, cascaded, least); err != nil {
					return err
				}
			}

			log.Info().Uint("group_id", groupID).Uint64("db_id", databaseID).
				Msg("blocked database, cascaded native editing and downloads to most restrictive")
		}

		return nil
	})
}

// SetTablePermissions atomically applies per-table values for one group and
// permission type. The batch must stay within a single database and must not
// contain block, which only exists database-wide.
//
// An existing database-wide row is expanded when the requested values differ
// from it: the row is deleted, every other table in the database gets a row
// carrying the old value, and the requested rows are inserted. Conversely,
// when every persisted table row ends up sharing one value after the change,
// the table rows collapse back into a single database-wide row.
func (m *Mutator) SetTablePermissions(groupID uint, t perm.Type, values map[uint64]perm.Value) error {
	if err := requireTableGranularity(t); err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}

	for tableID, v := range values {
		if v == perm.ValueBlock {
			return errors.Wrapf(perm.ErrIllegalBlockAssignment,
				"cannot assign block to table %d", tableID)
		}

		if err := perm.Validate(t, v); err != nil {
			return err
		}
	}

	return m.store.Transaction(func(s store.Store) error {
		tables, databaseID, err := resolveBatchTables(s, values)
		if err != nil {
			return err
		}

		existing, err := s.RowsForGroup(groupID, t, databaseID)
		if err != nil {
			return err
		}

		if wide := databaseWideRow(existing); wide != nil {
			return expandDatabaseRow(s, groupID, t, databaseID, wide, tables, values)
		}

		return replaceTableRows(s, groupID, t, databaseID, tables, values)
	})
}

// SetTablePermission applies one value to one table.
func (m *Mutator) SetTablePermission(groupID uint, tableID uint64, t perm.Type, v perm.Value) error {
	return m.SetTablePermissions(groupID, t, map[uint64]perm.Value{tableID: v})
}

func requireTableGranularity(t perm.Type) error {
	g, err := perm.GranularityOf(t)
	if err != nil {
		return err
	}

	if g != perm.GranularityTable {
		return errors.Wrapf(perm.ErrWrongGranularity,
			"permission type %q cannot be granted per table", t)
	}

	return nil
}

// resolveBatchTables looks up metadata for every targeted table and rejects
// batches spanning more than one database.
func resolveBatchTables(s store.Store, values map[uint64]perm.Value) (map[uint64]models.Table, uint64, error) {
	tables := make(map[uint64]models.Table, len(values))

	var (
		databaseID uint64
		seen       bool
	)

	for tableID := range values {
		table, err := s.TableMetadata(tableID)
		if err != nil {
			return nil, 0, err
		}

		if seen && table.DatabaseID != databaseID {
			return nil, 0, errors.Wrapf(perm.ErrCrossDatabaseMutation,
				"batch touches databases %d and %d", databaseID, table.DatabaseID)
		}

		databaseID = table.DatabaseID
		seen = true
		tables[tableID] = table
	}

	return tables, databaseID, nil
}

func databaseWideRow(rows []models.PermissionRow) *models.PermissionRow {
	for i := range rows {
		if rows[i].TableID == nil {
			return &rows[i]
		}
	}

	return nil
}

// expandDatabaseRow handles the branch where a database-wide row already
// exists. Requested values uniformly equal to it are a no-op; otherwise the
// row is materialized into per-table rows before the requested rows land.
func expandDatabaseRow(
	s store.Store,
	groupID uint,
	t perm.Type,
	databaseID uint64,
	wide *models.PermissionRow,
	tables map[uint64]models.Table,
	values map[uint64]perm.Value,
) error {
	uniform := true

	for _, v := range values {
		if v != wide.PermValue {
			uniform = false
			break
		}
	}

	if uniform {
		return nil
	}

	carried := wide.PermValue
	if carried == perm.ValueBlock {
		// Block cannot exist at table granularity; other tables keep the most
		// restrictive assignable value instead.
		assignable, err := perm.LeastPermissiveAssignable(t)
		if err != nil {
			return err
		}

		carried = assignable
	}

	all, err := s.TablesInDatabase(databaseID)
	if err != nil {
		return err
	}

	if err := s.DeleteRows(store.RowMatch{GroupID: groupID, Type: t, DatabaseID: databaseID}); err != nil {
		return err
	}

	rows := make([]models.PermissionRow, 0, len(all))

	for _, table := range all {
		v := carried
		if requested, ok := values[table.ID]; ok {
			v = requested
		}

		rows = append(rows, tableRow(groupID, t, table, v))
	}

	// Tables targeted by the batch but missing from the database listing
	// (not expected) still get their requested rows.
	for tableID, v := range values {
		found := false

		for _, table := range all {
			if table.ID == tableID {
				found = true
				break
			}
		}

		if !found {
			rows = append(rows, tableRow(groupID, t, tables[tableID], v))
		}
	}

	return s.InsertRows(rows)
}

// replaceTableRows handles the branch without a database-wide row: targeted
// table rows are replaced, then the key collapses to one database-wide row if
// every persisted table row now shares a single value.
func replaceTableRows(
	s store.Store,
	groupID uint,
	t perm.Type,
	databaseID uint64,
	tables map[uint64]models.Table,
	values map[uint64]perm.Value,
) error {
	ids := make([]uint64, 0, len(values))
	for tableID := range values {
		ids = append(ids, tableID)
	}

	if err := s.DeleteRows(store.RowMatch{GroupID: groupID, Type: t, DatabaseID: databaseID, TableIDs: ids}); err != nil {
		return err
	}

	rows := make([]models.PermissionRow, 0, len(values))
	for tableID, v := range values {
		rows = append(rows, tableRow(groupID, t, tables[tableID], v))
	}

	if err := s.InsertRows(rows); err != nil {
		return err
	}

	return collapseIfUniform(s, groupID, t, databaseID)
}

// collapseIfUniform normalizes table rows back into one database-wide row
// when every persisted table row shares one value. Tables without any
// persisted row are not consulted.
func collapseIfUniform(s store.Store, groupID uint, t perm.Type, databaseID uint64) error {
	rows, err := s.RowsForGroup(groupID, t, databaseID)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	uniform := rows[0].PermValue

	for i := range rows {
		if rows[i].PermValue != uniform {
			return nil
		}
	}

	if err := s.DeleteRows(store.RowMatch{GroupID: groupID, Type: t, DatabaseID: databaseID}); err != nil {
		return err
	}

	return s.InsertRows([]models.PermissionRow{databaseRow(groupID, t, databaseID, uniform)})
}

// SetNewTablePermissions grants initial permissions for a freshly discovered
// table. Groups holding a database-wide row for the type already cover the
// new table and are skipped. Otherwise the table inherits the schema's value
// when every persisted row in the schema agrees on one, keeping the schema
// homogeneous; in any other case defaultValue applies.
func (m *Mutator) SetNewTablePermissions(groupIDs []uint, tableID uint64, t perm.Type, defaultValue perm.Value) error {
	if err := requireTableGranularity(t); err != nil {
		return err
	}

	if defaultValue == perm.ValueBlock {
		return errors.Wrap(perm.ErrIllegalBlockAssignment, "cannot default a new table to block")
	}

	if err := perm.Validate(t, defaultValue); err != nil {
		return err
	}

	return m.store.Transaction(func(s store.Store) error {
		table, err := s.TableMetadata(tableID)
		if err != nil {
			return err
		}

		for _, groupID := range groupIDs {
			rows, err := s.RowsForGroup(groupID, t, table.DatabaseID)
			if err != nil {
				return err
			}

			if databaseWideRow(rows) != nil {
				continue
			}

			v := defaultValue

			schemaValues, err := s.SchemaValues(groupID, t, table.DatabaseID, table.SchemaName)
			if err != nil {
				return err
			}

			if len(schemaValues) == 1 {
				v = schemaValues[0]
			}

			if err := s.InsertRows([]models.PermissionRow{tableRow(groupID, t, table, v)}); err != nil {
				return err
			}
		}

		return nil
	})
}
