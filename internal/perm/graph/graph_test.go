package graph_test

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/graph"
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

func tableIDPtr(id uint64) *uint64 { return &id }

func schemaPtr(s string) *string { return &s }

func newBuilder(t *testing.T) *graph.Builder {
	t.Helper()

	db := setupTestDB(t)

	fixtures := []any{
		&models.Database{ID: 1, Name: "warehouse", Engine: "postgres"},
		&models.Database{ID: 2, Name: "staging", Engine: "postgres"},
		&models.Database{ID: 3, Name: "audit", Engine: "postgres", IsAudit: true},
		&models.Group{ID: 10, Name: "analysts"},
		&models.Group{ID: 20, Name: "engineers"},
	}

	rows := []models.PermissionRow{
		{GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, TableID: tableIDPtr(101), SchemaName: schemaPtr("public"), PermValue: perm.ValueUnrestricted},
		{GroupID: 10, PermType: perm.TypeDataAccess, DatabaseID: 1, TableID: tableIDPtr(103), SchemaName: schemaPtr("analytics"), PermValue: perm.ValueNoSelfService},
		{GroupID: 10, PermType: perm.TypeDownloadResults, DatabaseID: 1, PermValue: perm.ValueTenThousandRows},
		{GroupID: 20, PermType: perm.TypeDataAccess, DatabaseID: 2, PermValue: perm.ValueBlock},
		{GroupID: 20, PermType: perm.TypeDataAccess, DatabaseID: 3, PermValue: perm.ValueUnrestricted},
	}

	for _, fixture := range fixtures {
		require.NoError(t, db.Create(fixture).Error, "failed to seed test data")
	}

	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error, "failed to seed permission rows")
	}

	s, err := store.NewGormStore(db)
	require.NoError(t, err)

	return graph.NewBuilder(s)
}

func TestBuild(t *testing.T) {
	b := newBuilder(t)

	g, err := b.Build(graph.Options{})
	require.NoError(t, err)

	require.Contains(t, g.Groups, uint(10))
	require.Contains(t, g.Groups, uint(20))

	// group 10 holds a per-table data access breakdown and a database wide
	// download ceiling for the warehouse
	warehouse := g.Groups[10][1]
	require.NotNil(t, warehouse)

	dataAccess := warehouse[perm.TypeDataAccess]
	require.NotNil(t, dataAccess)
	assert.Empty(t, dataAccess.Value)
	assert.Equal(t, map[string]graph.Tables{
		"public":    {101: perm.ValueUnrestricted},
		"analytics": {103: perm.ValueNoSelfService},
	}, dataAccess.Schemas)

	download := warehouse[perm.TypeDownloadResults]
	require.NotNil(t, download)
	assert.Equal(t, perm.ValueTenThousandRows, download.Value)
	assert.Nil(t, download.Schemas)

	// group 20 blocked the staging database outright
	staging := g.Groups[20][2]
	require.NotNil(t, staging)
	assert.Equal(t, perm.ValueBlock, staging[perm.TypeDataAccess].Value)

	// the audit database is hidden by default
	assert.NotContains(t, g.Groups[20], uint64(3))
}

func TestBuildIncludeAudit(t *testing.T) {
	b := newBuilder(t)

	g, err := b.Build(graph.Options{IncludeAudit: true})
	require.NoError(t, err)

	require.Contains(t, g.Groups[20], uint64(3))
	assert.Equal(t, perm.ValueUnrestricted, g.Groups[20][3][perm.TypeDataAccess].Value)
}

func TestBuildFiltered(t *testing.T) {
	b := newBuilder(t)

	groupID := uint(10)
	databaseID := uint64(1)
	downloadResults := perm.TypeDownloadResults

	testCases := []struct {
		name string
		opts graph.Options
		want func(t *testing.T, g *graph.Graph)
	}{
		{
			name: "by group",
			opts: graph.Options{GroupID: &groupID},
			want: func(t *testing.T, g *graph.Graph) {
				t.Helper()
				assert.Len(t, g.Groups, 1)
				assert.Contains(t, g.Groups, uint(10))
			},
		},
		{
			name: "by database",
			opts: graph.Options{DatabaseID: &databaseID},
			want: func(t *testing.T, g *graph.Graph) {
				t.Helper()
				assert.Len(t, g.Groups, 1)
				assert.Contains(t, g.Groups[10], uint64(1))
			},
		},
		{
			name: "by type",
			opts: graph.Options{Type: &downloadResults},
			want: func(t *testing.T, g *graph.Graph) {
				t.Helper()
				require.Contains(t, g.Groups, uint(10))
				assert.Len(t, g.Groups[10][1], 1)
				assert.NotNil(t, g.Groups[10][1][perm.TypeDownloadResults])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := b.Build(tc.opts)
			require.NoError(t, err)
			tc.want(t, g)
		})
	}
}
