// Package graph denormalizes raw permission rows into a nested tree for the
// admin permission editor. The tree surfaces each group's grants
// independently and performs no coalescing or caching; it must never back an
// access decision.
package graph

import (
	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/store"
)

// Options narrows the graph to one group, database or permission type.
// Internal audit databases are excluded unless IncludeAudit is set.
type Options struct {
	GroupID      *uint
	DatabaseID   *uint64
	Type         *perm.Type
	IncludeAudit bool
}

// Tables maps table IDs to their granted value.
type Tables map[uint64]perm.Value

// Entry holds one group's grant for a (database, type) pair: either a single
// database-wide value or a per-schema table breakdown, never both.
type Entry struct {
	Value   perm.Value        `json:"value,omitempty"`
	Schemas map[string]Tables `json:"schemas,omitempty"`
}

// Perms maps permission types to their entry.
type Perms map[perm.Type]*Entry

// Databases maps database IDs to their per-type entries.
type Databases map[uint64]Perms

// Graph is the full nested tree: group, then database, then permission type,
// then either a database-wide value or schema and table.
type Graph struct {
	Groups map[uint]Databases `json:"groups"`
}

// Builder reads raw rows from the store and assembles the tree.
type Builder struct {
	store store.Store
}

// NewBuilder creates a graph Builder backed by the given row store.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build assembles the permissions tree for the given options.
func (b *Builder) Build(opts Options) (*Graph, error) {
	rows, err := b.store.Rows(store.RowFilter{
		GroupID:    opts.GroupID,
		Type:       opts.Type,
		DatabaseID: opts.DatabaseID,
	})
	if err != nil {
		return nil, err
	}

	dbs, err := b.store.Databases(opts.IncludeAudit)
	if err != nil {
		return nil, err
	}

	visible := make(map[uint64]bool, len(dbs))
	for _, database := range dbs {
		visible[database.ID] = true
	}

	g := &Graph{Groups: make(map[uint]Databases)}

	for i := range rows {
		row := &rows[i]

		if !visible[row.DatabaseID] {
			continue
		}

		g.place(row)
	}

	return g, nil
}

func (g *Graph) place(row *models.PermissionRow) {
	databases, ok := g.Groups[row.GroupID]
	if !ok {
		databases = make(Databases)
		g.Groups[row.GroupID] = databases
	}

	perms, ok := databases[row.DatabaseID]
	if !ok {
		perms = make(Perms)
		databases[row.DatabaseID] = perms
	}

	entry, ok := perms[row.PermType]
	if !ok {
		entry = &Entry{}
		perms[row.PermType] = entry
	}

	scope := row.Scope()

	tableID, isTable := scope.TableID()
	if !isTable {
		entry.Value = row.PermValue
		return
	}

	if entry.Schemas == nil {
		entry.Schemas = make(map[string]Tables)
	}

	tables, ok := entry.Schemas[scope.Schema()]
	if !ok {
		tables = make(Tables)
		entry.Schemas[scope.Schema()] = tables
	}

	tables[tableID] = row.PermValue
}
