package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
)

// tableCacheSize bounds the shared table-metadata cache.
const tableCacheSize = 4096

// GormStore implements Store on top of a gorm connection. Table metadata is
// immutable within a process lifetime, so lookups go through a bounded LRU
// cache shared across transactions.
type GormStore struct {
	db     *gorm.DB
	tables *lru.Cache[uint64, models.Table]
}

// NewGormStore creates a Store backed by the given gorm connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	cache, err := lru.New[uint64, models.Table](tableCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create table metadata cache")
	}

	return &GormStore{db: db, tables: cache}, nil
}

func applyFilter(q *gorm.DB, f RowFilter) *gorm.DB {
	if f.GroupID != nil {
		q = q.Where("data_permissions.group_id = ?", *f.GroupID)
	}

	if f.Type != nil {
		q = q.Where("data_permissions.perm_type = ?", *f.Type)
	}

	if f.DatabaseID != nil {
		q = q.Where("data_permissions.db_id = ?", *f.DatabaseID)
	}

	return q
}

// RowsForUser joins the user's group memberships against the permission rows.
func (s *GormStore) RowsForUser(userID uint64, f RowFilter) ([]models.PermissionRow, error) {
	var rows []models.PermissionRow

	q := s.db.Model(&models.PermissionRow{}).
		Select("data_permissions.*").
		Joins("JOIN user_groups ON user_groups.group_id = data_permissions.group_id").
		Where("user_groups.user_id = ?", userID)

	if err := applyFilter(q, f).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch permission rows for user")
	}

	return rows, nil
}

// RowsForGroup returns the rows persisted for one (group, type, database) key.
func (s *GormStore) RowsForGroup(groupID uint, t perm.Type, databaseID uint64) ([]models.PermissionRow, error) {
	var rows []models.PermissionRow

	err := s.db.
		Where("group_id = ? AND perm_type = ? AND db_id = ?", groupID, t, databaseID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch permission rows for group")
	}

	return rows, nil
}

// Rows returns raw rows matching the filter.
func (s *GormStore) Rows(f RowFilter) ([]models.PermissionRow, error) {
	var rows []models.PermissionRow

	q := s.db.Model(&models.PermissionRow{})
	if err := applyFilter(q, f).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch permission rows")
	}

	return rows, nil
}

// SchemaValues returns the distinct values persisted on table rows of one schema.
func (s *GormStore) SchemaValues(groupID uint, t perm.Type, databaseID uint64, schema string) ([]perm.Value, error) {
	var values []perm.Value

	err := s.db.Model(&models.PermissionRow{}).
		Distinct("perm_value").
		Where("group_id = ? AND perm_type = ? AND db_id = ? AND schema_name = ? AND table_id IS NOT NULL",
			groupID, t, databaseID, schema).
		Pluck("perm_value", &values).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch schema permission values")
	}

	return values, nil
}

// DeleteRows removes the rows selected by the match.
func (s *GormStore) DeleteRows(m RowMatch) error {
	q := s.db.Where("group_id = ? AND perm_type = ? AND db_id = ?", m.GroupID, m.Type, m.DatabaseID)

	if len(m.TableIDs) > 0 {
		q = q.Where("table_id IN ?", m.TableIDs)
	}

	if err := q.Delete(&models.PermissionRow{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete permission rows")
	}

	return nil
}

// InsertRows persists new permission rows.
func (s *GormStore) InsertRows(rows []models.PermissionRow) error {
	if len(rows) == 0 {
		return nil
	}

	if err := s.db.Create(&rows).Error; err != nil {
		return errors.Wrap(err, "failed to insert permission rows")
	}

	return nil
}

// TableMetadata returns id, database and schema for one table.
func (s *GormStore) TableMetadata(tableID uint64) (models.Table, error) {
	if table, ok := s.tables.Get(tableID); ok {
		return table, nil
	}

	var table models.Table

	result := s.db.First(&table, tableID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Table{}, errors.Wrapf(ErrTableNotFound, "table %d", tableID)
		}

		return models.Table{}, errors.Wrap(result.Error, "failed to fetch table metadata")
	}

	s.tables.Add(tableID, table)

	return table, nil
}

// TablesInDatabase returns every table registered for a database.
func (s *GormStore) TablesInDatabase(databaseID uint64) ([]models.Table, error) {
	var tables []models.Table

	if err := s.db.Where("db_id = ?", databaseID).Find(&tables).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch tables for database")
	}

	return tables, nil
}

// Databases lists registered databases, skipping audit databases unless asked.
func (s *GormStore) Databases(includeAudit bool) ([]models.Database, error) {
	var dbs []models.Database

	q := s.db.Model(&models.Database{})
	if !includeAudit {
		q = q.Where("is_audit = ?", false)
	}

	if err := q.Find(&dbs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch databases")
	}

	return dbs, nil
}

// IsSuperuser reports whether the user holds the superuser bypass.
func (s *GormStore) IsSuperuser(userID uint64) (bool, error) {
	var user models.User

	result := s.db.Select("id", "is_superuser").First(&user, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, errors.Wrapf(ErrUserNotFound, "user %d", userID)
		}

		return false, errors.Wrap(result.Error, "failed to check superuser flag")
	}

	return user.IsSuperuser, nil
}

// Transaction runs fn against a GormStore bound to one database transaction.
func (s *GormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, tables: s.tables})
	})
}
