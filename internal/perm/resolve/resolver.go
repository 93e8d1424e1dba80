// Package resolve implements the read side of the data-permissions engine.
// A Resolver combines the caller's group grant rows (optionally served from a
// per-request cache), any ephemeral overlay overrides, the coalescing rules,
// and the superuser bypass into one effective permission value per query.
package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/store"
)

// resolutionsTotal counts permission resolutions by permission type.
var resolutionsTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "permission_resolutions_total",
		Help: "Number of permission resolutions, differentiated by permission type.",
	},
	[]string{"type"},
)

// SuperuserFunc reports whether a user bypasses permission checks entirely.
type SuperuserFunc func(userID uint64) (bool, error)

// Resolver is the public read API of the permissions engine. All operations
// return a concrete permission value, never "absent": when a user holds no
// matching grant the type's least permissive value applies (fail closed).
type Resolver struct {
	store       store.Store
	isSuperuser SuperuserFunc
}

// New creates a Resolver. A nil superuser predicate falls back to the row
// store's superuser flag.
func New(s store.Store, superuser SuperuserFunc) *Resolver {
	if superuser == nil {
		superuser = s.IsSuperuser
	}

	return &Resolver{store: s, isSuperuser: superuser}
}

func requireGranularity(t perm.Type, want perm.Granularity) error {
	g, err := perm.GranularityOf(t)
	if err != nil {
		return err
	}

	if g != want {
		return errors.Wrapf(perm.ErrWrongGranularity,
			"permission type %q has %s granularity, operation requires %s", t, g, want)
	}

	return nil
}

// rowsFor gathers the user's rows for one type and database. The request
// cache is consulted only when the queried user is the authenticated caller
// installed on the context; any other identity goes straight to the store.
func (r *Resolver) rowsFor(ctx context.Context, userID uint64, t perm.Type, databaseID uint64) ([]models.PermissionRow, error) {
	if c := cacheFrom(ctx); c != nil && c.userID == userID {
		if current, ok := CurrentUser(ctx); ok && current == userID {
			all, err := c.get(r.store)
			if err != nil {
				return nil, err
			}

			var rows []models.PermissionRow

			for i := range all {
				if all[i].PermType == t && all[i].DatabaseID == databaseID {
					rows = append(rows, all[i])
				}
			}

			return rows, nil
		}
	}

	return r.store.RowsForUser(userID, store.RowFilter{Type: &t, DatabaseID: &databaseID})
}

// coalesceOrLeast coalesces candidate values, substituting the type's least
// permissive value for an empty candidate set.
func coalesceOrLeast(t perm.Type, values []perm.Value) (perm.Value, error) {
	v, ok, err := perm.Coalesce(t, values)
	if err != nil {
		return "", err
	}

	if !ok {
		return perm.LeastPermissive(t)
	}

	return v, nil
}

func rowValues(rows []models.PermissionRow, keep func(*models.PermissionRow) bool) []perm.Value {
	var values []perm.Value

	for i := range rows {
		if keep == nil || keep(&rows[i]) {
			values = append(values, rows[i].PermValue)
		}
	}

	return values
}

// worstPerGroupBestAcross reduces matching rows per group with the
// most-restrictive rule (the worst table visible to that group), then
// combines the per-group aggregates with the normal rule (the best group
// wins).
func worstPerGroupBestAcross(t perm.Type, rows []models.PermissionRow, keep func(*models.PermissionRow) bool) (perm.Value, error) {
	byGroup := make(map[uint][]perm.Value)

	for i := range rows {
		if keep == nil || keep(&rows[i]) {
			byGroup[rows[i].GroupID] = append(byGroup[rows[i].GroupID], rows[i].PermValue)
		}
	}

	var groupValues []perm.Value

	for _, values := range byGroup {
		v, ok, err := perm.CoalesceMostRestrictive(t, values)
		if err != nil {
			return "", err
		}

		if ok {
			groupValues = append(groupValues, v)
		}
	}

	return coalesceOrLeast(t, groupValues)
}

// DatabasePermission resolves the user's effective value for a
// database-granularity permission type.
func (r *Resolver) DatabasePermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityDatabase); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	return coalesceOrLeast(t, rowValues(rows, nil))
}

// TablePermission resolves the user's effective value for one table. Rows
// scoped to the table and database-wide default rows both contribute, as does
// any overlay override installed on the context.
func (r *Resolver) TablePermission(ctx context.Context, userID uint64, t perm.Type, databaseID, tableID uint64) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityTable); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	values := rowValues(rows, func(row *models.PermissionRow) bool {
		return row.TableID == nil || *row.TableID == tableID
	})

	if v, ok := overrideValue(ctx, databaseID, tableID, t); ok {
		values = append(values, v)
	}

	return coalesceOrLeast(t, values)
}

// SchemaPermission resolves the best access the user has to some table in the
// schema: rows are narrowed to the schema (or database-wide defaults) and
// coalesced with the normal most-permissive rule.
func (r *Resolver) SchemaPermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64, schema string) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityTable); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	return coalesceOrLeast(t, rowValues(rows, schemaMatcher(schema)))
}

func schemaMatcher(schema string) func(*models.PermissionRow) bool {
	return func(row *models.PermissionRow) bool {
		if row.TableID == nil {
			return true
		}

		return row.SchemaName != nil && *row.SchemaName == schema
	}
}

// FullSchemaPermission resolves the access the user has to every table in the
// schema: per group the worst matching value, then the best group wins.
func (r *Resolver) FullSchemaPermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64, schema string) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityTable); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	return worstPerGroupBestAcross(t, rows, schemaMatcher(schema))
}

// FullDatabasePermission resolves the access the user has to every table in
// the database: per group the worst visible value, then the best group wins.
func (r *Resolver) FullDatabasePermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityTable); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	return worstPerGroupBestAcross(t, rows, nil)
}

// MostPermissiveDatabasePermission resolves the best access the user has to
// any single table in the database: a plain union of every row, coalesced.
func (r *Resolver) MostPermissiveDatabasePermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64) (perm.Value, error) {
	if err := requireGranularity(t, perm.GranularityTable); err != nil {
		return "", err
	}

	resolutionsTotal.WithLabelValues(string(t)).Inc()

	if super, err := r.isSuperuser(userID); err != nil {
		return "", err
	} else if super {
		return perm.MostPermissive(t)
	}

	rows, err := r.rowsFor(ctx, userID, t, databaseID)
	if err != nil {
		return "", err
	}

	return coalesceOrLeast(t, rowValues(rows, nil))
}

// NativeDownloadPermission resolves the download ceiling for native queries.
// A native query can touch any table in the database, so per group the worst
// table value applies before the best group wins.
func (r *Resolver) NativeDownloadPermission(ctx context.Context, userID uint64, databaseID uint64) (perm.Value, error) {
	return r.FullDatabasePermission(ctx, userID, perm.TypeDownloadResults, databaseID)
}

// HasBlockPermission reports whether the user's coalesced data access for the
// database is block.
func (r *Resolver) HasBlockPermission(ctx context.Context, userID uint64, databaseID uint64) (bool, error) {
	if super, err := r.isSuperuser(userID); err != nil {
		return false, err
	} else if super {
		return false, nil
	}

	rows, err := r.rowsFor(ctx, userID, perm.TypeDataAccess, databaseID)
	if err != nil {
		return false, err
	}

	v, err := coalesceOrLeast(perm.TypeDataAccess, rowValues(rows, nil))
	if err != nil {
		return false, err
	}

	return v == perm.ValueBlock, nil
}

// HasAtLeastDatabasePermission reports whether the user's effective
// database-level value grants at least the threshold.
func (r *Resolver) HasAtLeastDatabasePermission(ctx context.Context, userID uint64, t perm.Type, databaseID uint64, threshold perm.Value) (bool, error) {
	v, err := r.DatabasePermission(ctx, userID, t, databaseID)
	if err != nil {
		return false, err
	}

	return perm.AtLeastAsPermissive(t, v, threshold)
}

// HasAtLeastTablePermission reports whether the user's effective table-level
// value grants at least the threshold.
func (r *Resolver) HasAtLeastTablePermission(ctx context.Context, userID uint64, t perm.Type, databaseID, tableID uint64, threshold perm.Value) (bool, error) {
	v, err := r.TablePermission(ctx, userID, t, databaseID, tableID)
	if err != nil {
		return false, err
	}

	return perm.AtLeastAsPermissive(t, v, threshold)
}

// UserPermission is one line of the human-readable permissions summary.
type UserPermission struct {
	DatabaseID uint64     `json:"db_id"`
	Type       perm.Type  `json:"type"`
	Value      perm.Value `json:"value"`
}

// String renders the summary line.
func (p UserPermission) String() string {
	return fmt.Sprintf("database %d: %s = %s", p.DatabaseID, p.Type, p.Value)
}

// PermissionsForUser builds a human-readable summary of the user's effective
// permissions: for every database the user holds grants in, the coalesced
// value per permission type. Superusers report the most permissive value for
// every registered database. Display only.
func (r *Resolver) PermissionsForUser(ctx context.Context, userID uint64) ([]UserPermission, error) {
	super, err := r.isSuperuser(userID)
	if err != nil {
		return nil, err
	}

	if super {
		return r.superuserSummary()
	}

	var rows []models.PermissionRow

	if c := cacheFrom(ctx); c != nil && c.userID == userID {
		if current, ok := CurrentUser(ctx); ok && current == userID {
			rows, err = c.get(r.store)
		} else {
			rows, err = r.store.RowsForUser(userID, store.RowFilter{})
		}
	} else {
		rows, err = r.store.RowsForUser(userID, store.RowFilter{})
	}

	if err != nil {
		return nil, err
	}

	type key struct {
		databaseID uint64
		permType   perm.Type
	}

	grouped := make(map[key][]perm.Value)
	for i := range rows {
		k := key{databaseID: rows[i].DatabaseID, permType: rows[i].PermType}
		grouped[k] = append(grouped[k], rows[i].PermValue)
	}

	summary := make([]UserPermission, 0, len(grouped))

	for k, values := range grouped {
		v, err := coalesceOrLeast(k.permType, values)
		if err != nil {
			return nil, err
		}

		summary = append(summary, UserPermission{DatabaseID: k.databaseID, Type: k.permType, Value: v})
	}

	sortSummary(summary)

	return summary, nil
}

func (r *Resolver) superuserSummary() ([]UserPermission, error) {
	dbs, err := r.store.Databases(false)
	if err != nil {
		return nil, err
	}

	var summary []UserPermission

	for _, database := range dbs {
		for _, t := range perm.Types() {
			most, err := perm.MostPermissive(t)
			if err != nil {
				return nil, err
			}

			summary = append(summary, UserPermission{DatabaseID: database.ID, Type: t, Value: most})
		}
	}

	sortSummary(summary)

	return summary, nil
}

func sortSummary(summary []UserPermission) {
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].DatabaseID != summary[j].DatabaseID {
			return summary[i].DatabaseID < summary[j].DatabaseID
		}

		return summary[i].Type < summary[j].Type
	})
}
