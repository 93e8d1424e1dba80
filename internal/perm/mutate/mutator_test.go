package mutate_test

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/mutate"
	"github.com/glassview-analytics/glassview/internal/perm/store"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.Database{},
		&models.Table{},
		&models.Group{},
		&models.PermissionRow{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// seedFixtures registers two databases: the warehouse with three tables in
// two schemas, and a staging database with a single table.
func seedFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()

	fixtures := []any{
		&models.Database{ID: 1, Name: "warehouse", Engine: "postgres"},
		&models.Database{ID: 2, Name: "staging", Engine: "postgres"},
		&models.Table{ID: 101, DatabaseID: 1, SchemaName: "public", Name: "orders"},
		&models.Table{ID: 102, DatabaseID: 1, SchemaName: "public", Name: "customers"},
		&models.Table{ID: 103, DatabaseID: 1, SchemaName: "analytics", Name: "events"},
		&models.Table{ID: 201, DatabaseID: 2, SchemaName: "public", Name: "scratch"},
		&models.Group{ID: 10, Name: "analysts"},
	}

	for _, fixture := range fixtures {
		require.NoError(t, db.Create(fixture).Error, "failed to seed test data")
	}
}

func newMutator(t *testing.T) (*gorm.DB, *store.GormStore, *mutate.Mutator) {
	t.Helper()

	db := setupTestDB(t)
	seedFixtures(t, db)

	s, err := store.NewGormStore(db)
	require.NoError(t, err)

	return db, s, mutate.New(s)
}

func tableIDPtr(id uint64) *uint64 { return &id }

func schemaPtr(s string) *string { return &s }

// rowsByTable indexes persisted table rows by table ID; the database wide
// row, if any, lands under key 0.
func rowsByTable(t *testing.T, s *store.GormStore, groupID uint, pt perm.Type, databaseID uint64) map[uint64]perm.Value {
	t.Helper()

	rows, err := s.RowsForGroup(groupID, pt, databaseID)
	require.NoError(t, err)

	out := make(map[uint64]perm.Value, len(rows))

	for i := range rows {
		key := uint64(0)
		if rows[i].TableID != nil {
			key = *rows[i].TableID
		}

		out[key] = rows[i].PermValue
	}

	return out
}

func TestSetDatabasePermission(t *testing.T) {
	db, s, m := newMutator(t)

	t.Run("writes a single database wide row", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")

		err := m.SetDatabasePermission(10, 1, perm.TypeDataAccess, perm.ValueUnrestricted)
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("replaces existing table rows", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueNoSelfService,
		}).Error)

		err := m.SetDatabasePermission(10, 1, perm.TypeDataAccess, perm.ValueUnrestricted)
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("block cascades to native editing and downloads", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDownloadResults, DatabaseID: 1, PermValue: perm.ValueOneMillionRows,
		}).Error)
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeNativeQueryEditing, DatabaseID: 1, PermValue: perm.ValueYes,
		}).Error)

		err := m.SetDatabasePermission(10, 1, perm.TypeDataAccess, perm.ValueBlock)
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueBlock}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueNo}, rowsByTable(t, s, 10, perm.TypeDownloadResults, 1))
		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueNo}, rowsByTable(t, s, 10, perm.TypeNativeQueryEditing, 1))
	})

	t.Run("block is rejected for other types", func(t *testing.T) {
		err := m.SetDatabasePermission(10, 1, perm.TypeDownloadResults, perm.ValueBlock)
		require.Error(t, err)
		require.ErrorIs(t, err, perm.ErrIllegalBlockAssignment)
	})

	t.Run("invalid value is rejected", func(t *testing.T) {
		err := m.SetDatabasePermission(10, 1, perm.TypeManageDatabase, perm.ValueUnrestricted)
		require.Error(t, err)
		require.ErrorIs(t, err, perm.ErrInvalidPermissionValue)
	})
}

func TestSetTablePermissionsValidation(t *testing.T) {
	_, _, m := newMutator(t)

	testCases := []struct {
		name          string
		permType      perm.Type
		values        map[uint64]perm.Value
		expectedError error
	}{
		{
			name:          "block cannot land on a table",
			permType:      perm.TypeDataAccess,
			values:        map[uint64]perm.Value{101: perm.ValueBlock},
			expectedError: perm.ErrIllegalBlockAssignment,
		},
		{
			name:          "database granularity type",
			permType:      perm.TypeNativeQueryEditing,
			values:        map[uint64]perm.Value{101: perm.ValueYes},
			expectedError: perm.ErrWrongGranularity,
		},
		{
			name:          "value outside the lattice",
			permType:      perm.TypeDataAccess,
			values:        map[uint64]perm.Value{101: perm.ValueYes},
			expectedError: perm.ErrInvalidPermissionValue,
		},
		{
			name:          "batch spanning two databases",
			permType:      perm.TypeDataAccess,
			values:        map[uint64]perm.Value{101: perm.ValueUnrestricted, 201: perm.ValueUnrestricted},
			expectedError: perm.ErrCrossDatabaseMutation,
		},
		{
			name:          "unknown table",
			permType:      perm.TypeDataAccess,
			values:        map[uint64]perm.Value{999: perm.ValueUnrestricted},
			expectedError: store.ErrTableNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.SetTablePermissions(10, tc.permType, tc.values)
			require.Error(t, err)
			require.ErrorIs(t, err, tc.expectedError)
		})
	}
}

func TestSetTablePermissionsExpand(t *testing.T) {
	db, s, m := newMutator(t)

	t.Run("database wide row expands around the change", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{101: perm.ValueNoSelfService})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{
			101: perm.ValueNoSelfService,
			102: perm.ValueUnrestricted,
			103: perm.ValueUnrestricted,
		}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("matching value is a no-op", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{101: perm.ValueUnrestricted})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("expanding a block grants the most restrictive assignable value", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, PermValue: perm.ValueBlock,
		}).Error)

		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{101: perm.ValueUnrestricted})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{
			101: perm.ValueUnrestricted,
			102: perm.ValueNoSelfService,
			103: perm.ValueNoSelfService,
		}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("expanded rows carry the schema name", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{103: perm.ValueNoSelfService})
		require.NoError(t, err)

		rows, err := s.RowsForGroup(10, perm.TypeDataAccess, 1)
		require.NoError(t, err)

		for i := range rows {
			require.NotNil(t, rows[i].TableID)
			require.NotNil(t, rows[i].SchemaName)

			if *rows[i].TableID == 103 {
				assert.Equal(t, "analytics", *rows[i].SchemaName)
			} else {
				assert.Equal(t, "public", *rows[i].SchemaName)
			}
		}
	})
}

func TestSetTablePermissionsCollapse(t *testing.T) {
	db, s, m := newMutator(t)

	t.Run("uniform persisted rows collapse to one database wide row", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted,
		}).Error)
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(102), SchemaName: schemaPtr("public"), PermValue: perm.ValueNoSelfService,
		}).Error)

		// table 103 has no row at all; only persisted rows count
		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{102: perm.ValueUnrestricted})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("mixed values stay per table", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetTablePermissions(10, perm.TypeDataAccess, map[uint64]perm.Value{102: perm.ValueNoSelfService})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{
			101: perm.ValueUnrestricted,
			102: perm.ValueNoSelfService,
		}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("single table write into an empty key collapses", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")

		err := m.SetTablePermission(10, 101, perm.TypeDataAccess, perm.ValueUnrestricted)
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")

		err := m.SetTablePermissions(10, perm.TypeDataAccess, nil)
		require.NoError(t, err)

		assert.Empty(t, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})
}

func TestSetNewTablePermissions(t *testing.T) {
	db, s, m := newMutator(t)

	// the freshly discovered table lives in the public schema of database 1
	newTable := &models.Table{ID: 104, DatabaseID: 1, SchemaName: "public", Name: "shipments"}
	require.NoError(t, db.Create(newTable).Error)

	t.Run("database wide row already covers the table", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetNewTablePermissions([]uint{10}, 104, perm.TypeDataAccess, perm.ValueNoSelfService)
		require.NoError(t, err)

		assert.Equal(t, map[uint64]perm.Value{0: perm.ValueUnrestricted}, rowsByTable(t, s, 10, perm.TypeDataAccess, 1))
	})

	t.Run("uniform schema value is inherited", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted,
		}).Error)
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(102), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted,
		}).Error)

		err := m.SetNewTablePermissions([]uint{10}, 104, perm.TypeDataAccess, perm.ValueNoSelfService)
		require.NoError(t, err)

		rows := rowsByTable(t, s, 10, perm.TypeDataAccess, 1)
		assert.Equal(t, perm.ValueUnrestricted, rows[104])
	})

	t.Run("mixed schema falls back to the default", func(t *testing.T) {
		db.Exec("DELETE FROM data_permissions")
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted,
		}).Error)
		require.NoError(t, db.Create(&models.PermissionRow{
			GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1,
			TableID: tableIDPtr(102), SchemaName: schemaPtr("public"), PermValue: perm.ValueNoSelfService,
		}).Error)

		err := m.SetNewTablePermissions([]uint{10}, 104, perm.TypeDataAccess, perm.ValueNoSelfService)
		require.NoError(t, err)

		rows := rowsByTable(t, s, 10, perm.TypeDataAccess, 1)
		assert.Equal(t, perm.ValueNoSelfService, rows[104])
	})

	t.Run("block default is rejected", func(t *testing.T) {
		err := m.SetNewTablePermissions([]uint{10}, 104, perm.TypeDataAccess, perm.ValueBlock)
		require.Error(t, err)
		require.ErrorIs(t, err, perm.ErrIllegalBlockAssignment)
	})

	t.Run("unknown table", func(t *testing.T) {
		err := m.SetNewTablePermissions([]uint{10}, 999, perm.TypeDataAccess, perm.ValueNoSelfService)
		require.Error(t, err)
		require.ErrorIs(t, err, store.ErrTableNotFound)
	})
}
